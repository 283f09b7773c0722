package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"initiative_syncer/internal/domain"
)

const lookupChunkSize = 500

type LookupStore struct {
	db *sqlx.DB
}

func NewLookupStore(db *sqlx.DB) *LookupStore {
	return &LookupStore{db: db}
}

// UpsertBatch writes lookups with multi-row inserts. Duplicate (kind, value)
// pairs keep the last entry.
func (s *LookupStore) UpsertBatch(ctx context.Context, lookups []domain.Lookup) error {
	lookups = dedupLookups(lookups)

	for start := 0; start < len(lookups); start += lookupChunkSize {
		end := min(start+lookupChunkSize, len(lookups))
		if err := s.upsertChunk(ctx, lookups[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *LookupStore) upsertChunk(ctx context.Context, lookups []domain.Lookup) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO initiative_lookups (kind, value, label, sub_label) VALUES ")
	valueArgs := make([]interface{}, 0, len(lookups)*4)

	for i, l := range lookups {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		sb.WriteString("($")
		sb.WriteString(strconv.Itoa(base + 1))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(base + 2))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(base + 3))
		sb.WriteString(", $")
		sb.WriteString(strconv.Itoa(base + 4))
		sb.WriteString(")")
		valueArgs = append(valueArgs, string(l.Kind), l.Value, l.Label, l.SubLabel)
	}
	sb.WriteString(` ON CONFLICT (kind, value) DO UPDATE SET
		label = EXCLUDED.label,
		sub_label = EXCLUDED.sub_label,
		updated_at = now()
	WHERE (initiative_lookups.label, initiative_lookups.sub_label)
		IS DISTINCT FROM (EXCLUDED.label, EXCLUDED.sub_label)`)

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), valueArgs...)
	return err
}

func (s *LookupStore) ListByKind(ctx context.Context, kind domain.LookupKind) ([]domain.Lookup, error) {
	query := `
		SELECT kind, value, label, sub_label
		FROM initiative_lookups
		WHERE kind = $1
		ORDER BY value`

	var lookups []domain.Lookup
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &lookups, query, string(kind))
	return lookups, err
}

func dedupLookups(lookups []domain.Lookup) []domain.Lookup {
	type key struct {
		kind  domain.LookupKind
		value int64
	}
	pos := make(map[key]int, len(lookups))
	out := make([]domain.Lookup, 0, len(lookups))
	for _, l := range lookups {
		k := key{kind: l.Kind, value: l.Value}
		if i, ok := pos[k]; ok {
			out[i] = l
			continue
		}
		pos[k] = len(out)
		out = append(out, l)
	}
	return out
}
