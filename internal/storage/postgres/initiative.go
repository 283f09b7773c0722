package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"initiative_syncer/internal/domain"
)

const (
	uniqueViolation = "23505"
	apiIDConstraint = "initiatives_api_id_key"
)

const upsertColumns = `
	api_id, slug, english_name, status, category, gaiin_country_id,
	start_year, end_year, api_created_at, api_updated_at, document`

const upsertValues = `
	NULLIF($1::bigint, 0), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb`

const upsertSet = `
	api_id = EXCLUDED.api_id,
	slug = EXCLUDED.slug,
	english_name = EXCLUDED.english_name,
	status = EXCLUDED.status,
	category = EXCLUDED.category,
	gaiin_country_id = EXCLUDED.gaiin_country_id,
	start_year = EXCLUDED.start_year,
	end_year = EXCLUDED.end_year,
	api_created_at = EXCLUDED.api_created_at,
	api_updated_at = EXCLUDED.api_updated_at,
	document = EXCLUDED.document,
	updated_at = now()
WHERE initiatives.document IS DISTINCT FROM EXCLUDED.document
RETURNING (xmax = 0) AS inserted`

var (
	upsertBySlugQuery = `INSERT INTO initiatives (` + upsertColumns + `) VALUES (` + upsertValues + `)
ON CONFLICT (slug) WHERE slug IS NOT NULL DO UPDATE SET` + upsertSet

	upsertByAPIIDQuery = `INSERT INTO initiatives (` + upsertColumns + `) VALUES (` + upsertValues + `)
ON CONFLICT (api_id) DO UPDATE SET` + upsertSet
)

type InitiativeStore struct {
	db *sqlx.DB
	tm *TransactionManager
}

func NewInitiativeStore(db *sqlx.DB) *InitiativeStore {
	return &InitiativeStore{db: db, tm: NewTransactionManager(db)}
}

// BulkUpsert applies ops in one transaction, each inside its own savepoint,
// so a rejected op does not undo the others. Rejected ops are reported in a
// *domain.BulkWriteError alongside the counts of the applied ones.
func (s *InitiativeStore) BulkUpsert(ctx context.Context, ops []domain.UpsertOp) (*domain.BulkResult, error) {
	res := &domain.BulkResult{}
	if len(ops) == 0 {
		return res, nil
	}

	err := s.tm.WithTransaction(ctx, func(ctx context.Context) error {
		tx := GetTxFromContext(ctx)

		for i := range ops {
			op := &ops[i]

			outcome, opErr, fatal := s.applyOp(ctx, tx, op)
			if fatal != nil {
				return fatal
			}
			if opErr != nil {
				res.Failed = append(res.Failed, domain.OpFailure{Index: i, Key: op.Key, Err: mapError(opErr)})
				continue
			}

			switch outcome {
			case outcomeInserted:
				res.Upserted++
			case outcomeModified:
				res.Matched++
				res.Modified++
			case outcomeUnchanged:
				res.Matched++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bulk upsert initiatives: %w", err)
	}

	if len(res.Failed) > 0 {
		return res, &domain.BulkWriteError{Failures: res.Failed}
	}
	return res, nil
}

// applyOp runs op in a savepoint. A slug op that collides on api_id is
// retried keyed by api_id, so a record whose slug appeared or changed
// upstream updates its existing row.
func (s *InitiativeStore) applyOp(ctx context.Context, tx *sqlx.Tx, op *domain.UpsertOp) (outcome upsertOutcome, opErr, fatal error) {
	run := func(kind domain.KeyKind) (error, error) {
		return withSavepoint(ctx, tx, "initiative_upsert", func() error {
			var err error
			outcome, err = s.upsertOne(ctx, tx, kind, &op.Record)
			return err
		})
	}

	opErr, fatal = run(op.Key.Kind)
	if fatal == nil && op.Key.Kind == domain.KeySlug && isAPIIDConflict(opErr) {
		opErr, fatal = run(domain.KeyAPIID)
	}
	return outcome, opErr, fatal
}

type upsertOutcome int

const (
	outcomeUnchanged upsertOutcome = iota
	outcomeInserted
	outcomeModified
)

func (s *InitiativeStore) upsertOne(ctx context.Context, tx *sqlx.Tx, kind domain.KeyKind, rec *domain.Initiative) (upsertOutcome, error) {
	var query string
	switch kind {
	case domain.KeySlug:
		query = upsertBySlugQuery
	case domain.KeyAPIID:
		query = upsertByAPIIDQuery
	default:
		return outcomeUnchanged, fmt.Errorf("upsert without key")
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("encode initiative: %w", err)
	}

	var inserted bool
	err = tx.QueryRowxContext(ctx, query,
		rec.APIID,
		rec.Slug,
		rec.EnglishName,
		rec.Status,
		rec.Category,
		rec.GaiinCountryID,
		rec.StartYear,
		rec.EndYear,
		rec.APICreatedAt,
		rec.APIUpdatedAt,
		string(doc),
	).Scan(&inserted)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return outcomeUnchanged, nil
	case err != nil:
		return outcomeUnchanged, err
	case inserted:
		return outcomeInserted, nil
	default:
		return outcomeModified, nil
	}
}

func (s *InitiativeStore) Count(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &n, `SELECT count(*) FROM initiatives`)
	return n, err
}

// GetBySlug returns nil when no initiative has slug.
func (s *InitiativeStore) GetBySlug(ctx context.Context, slug string) (*domain.Initiative, error) {
	var doc []byte
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &doc,
		`SELECT document FROM initiatives WHERE slug = $1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec domain.Initiative
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode initiative: %w", err)
	}
	return &rec, nil
}

func isAPIIDConflict(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == apiIDConstraint
}

func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", pqErr.Constraint, domain.ErrConflict)
	}
	return err
}
