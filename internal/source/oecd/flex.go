package oecd

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// The flex types never fail to decode. A value that cannot be read as the
// wanted type leaves Value nil.

// flexString keeps strings as is and other scalars in their text form.
// Objects and arrays decode to nil.
type flexString struct {
	Value *string
}

func (s *flexString) UnmarshalJSON(b []byte) error {
	s.Value = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}

	switch b[0] {
	case 'n', '{', '[':
		return nil
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err == nil {
			s.Value = &v
		}
		return nil
	default:
		v := string(b)
		s.Value = &v
		return nil
	}
}

// flexInt64 accepts integral numbers and numeric strings.
type flexInt64 struct {
	Value *int64
}

func (n *flexInt64) UnmarshalJSON(b []byte) error {
	n.Value = nil
	if v, ok := parseInteger(b); ok {
		n.Value = &v
	}
	return nil
}

type flexInt struct {
	Value *int
}

func (n *flexInt) UnmarshalJSON(b []byte) error {
	n.Value = nil
	if v, ok := parseInteger(b); ok && v >= math.MinInt32 && v <= math.MaxInt32 {
		i := int(v)
		n.Value = &i
	}
	return nil
}

// flexBool accepts true/false literals and their quoted forms.
type flexBool struct {
	Value *bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	f.Value = nil
	var v bool
	switch strings.Trim(string(bytes.TrimSpace(b)), `"`) {
	case "true":
		v = true
	case "false":
		v = false
	default:
		return nil
	}
	f.Value = &v
	return nil
}

// flexStrings decodes an array, keeping its scalar entries as text. Any
// other value decodes to nil.
type flexStrings []string

func (l *flexStrings) UnmarshalJSON(b []byte) error {
	*l = nil
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, el := range raw {
		var s flexString
		_ = s.UnmarshalJSON(el)
		if s.Value != nil {
			out = append(out, *s.Value)
		}
	}
	*l = out
	return nil
}

func parseInteger(b []byte) (int64, bool) {
	b = bytes.TrimSpace(b)
	text := string(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(s)
	}

	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}
