package service

import (
	"cmp"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"initiative_syncer/internal/domain"
)

var (
	lookupValuePaths = []string{"id", "value"}
	lookupLabelPaths = []string{"label", "name", "englishName", "title"}
)

type lookupKey struct {
	kind  domain.LookupKind
	value int64
}

// lookupHarvester collects reference entries from the nested structures of
// initiatives. Later occurrences overwrite earlier labels.
type lookupHarvester struct {
	entries map[lookupKey]domain.Lookup
}

func newLookupHarvester() *lookupHarvester {
	return &lookupHarvester{entries: make(map[lookupKey]domain.Lookup)}
}

func (h *lookupHarvester) add(rec *domain.Initiative) {
	h.collect(domain.LookupAITag, rec.Tags)
	h.collect(domain.LookupAIPrinciple, rec.Principles)
	h.collect(domain.LookupInitiativeType, rec.InitiativeType)
	h.collect(domain.LookupCountry, rec.GaiinCountry)
	h.collect(domain.LookupIntergovernmentalOrganisation, rec.IntergovernmentalOrganisation)
}

func (h *lookupHarvester) collect(kind domain.LookupKind, raw []byte) {
	if len(raw) == 0 {
		return
	}
	res := gjson.ParseBytes(raw)
	switch {
	case res.IsArray():
		res.ForEach(func(_, el gjson.Result) bool {
			h.collectOne(kind, el)
			return true
		})
	case res.IsObject():
		h.collectOne(kind, res)
	}
}

func (h *lookupHarvester) collectOne(kind domain.LookupKind, el gjson.Result) {
	if !el.IsObject() {
		return
	}

	value, ok := firstInt(el, lookupValuePaths)
	if !ok {
		return
	}
	label := firstString(el, lookupLabelPaths)
	if label == "" {
		return
	}

	entry := domain.Lookup{Kind: kind, Value: value, Label: label}
	if sub := strings.TrimSpace(el.Get("subLabel").String()); sub != "" {
		entry.SubLabel = &sub
	}
	h.entries[lookupKey{kind: kind, value: value}] = entry
}

// lookups returns the harvested entries ordered by kind then value.
func (h *lookupHarvester) lookups() []domain.Lookup {
	out := make([]domain.Lookup, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b domain.Lookup) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return out
}

func firstInt(el gjson.Result, paths []string) (int64, bool) {
	for _, p := range paths {
		v := el.Get(p)
		if v.Type == gjson.Number {
			return v.Int(), true
		}
		if v.Type == gjson.String {
			n := gjson.Parse(v.Str)
			if n.Type == gjson.Number {
				return n.Int(), true
			}
		}
	}
	return 0, false
}

func firstString(el gjson.Result, paths []string) string {
	for _, p := range paths {
		v := el.Get(p)
		if v.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(v.Str); s != "" {
			return s
		}
	}
	return ""
}
