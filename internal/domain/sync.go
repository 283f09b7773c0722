package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCircuitOpen is returned by the catalog client while its breaker refuses calls.
var ErrCircuitOpen = errors.New("catalog circuit breaker open")

// ErrConflict is returned for an upsert that would give a second record an
// existing slug or api id.
var ErrConflict = errors.New("unique key conflict")

// SkipReasonLock marks a run that found another sync holding the lock.
const SkipReasonLock = "lock"

// PageResult is one page of the remote catalog.
type PageResult struct {
	Items       []Initiative
	CurrentPage int
	LastPage    int
	Total       int
	PerPage     int
	Malformed   int // items dropped because they could not be decoded
}

// SyncMeta is the singleton bookkeeping record for catalog syncs.
type SyncMeta struct {
	LastAPITotal    int        `db:"last_api_total" json:"lastApiTotal"`
	LastSyncedAt    *time.Time `db:"last_synced_at" json:"lastSyncedAt"`
	LastPageFetched int        `db:"last_page_fetched" json:"lastPageFetched"`
	SyncInProgress  bool       `db:"sync_in_progress" json:"syncInProgress"`
	SyncStartedAt   *time.Time `db:"sync_started_at" json:"syncStartedAt"`
}

// SyncCompletion is what a finished full sync records in SyncMeta.
type SyncCompletion struct {
	APITotal int
	SyncedAt time.Time
	LastPage int
}

// SyncResult is returned by every SyncIfTotalChanged call.
type SyncResult struct {
	RunID        string        `json:"runId"`
	Synced       bool          `json:"synced"`
	Skipped      string        `json:"skipped,omitempty"`
	TotalInAPI   int           `json:"totalInApi"`
	TotalFetched int           `json:"totalFetched"`
	LastPage     int           `json:"lastPage,omitempty"`
	Duplicates   int           `json:"duplicates,omitempty"`
	Invalid      int           `json:"invalid,omitempty"`
	Lookups      int           `json:"lookups,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// BulkResult summarises one unordered batch upsert.
type BulkResult struct {
	Upserted int
	Modified int
	Matched  int
	Failed   []OpFailure
}

// Applied is the number of rows inserted or changed.
func (r *BulkResult) Applied() int {
	return r.Upserted + r.Modified
}

// OpFailure records a single op rejected by the store.
type OpFailure struct {
	Index int
	Key   UpsertKey
	Err   error
}

// BulkWriteError is returned after an unordered batch in which some ops failed.
// The remaining ops of the batch were still applied.
type BulkWriteError struct {
	Failures []OpFailure
}

func (e *BulkWriteError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("op %d (%s): %v", f.Index, f.Key.Kind, f.Err))
		if len(parts) == 5 {
			break
		}
	}
	msg := fmt.Sprintf("bulk write: %d op(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
	if len(e.Failures) > 5 {
		msg += "; ..."
	}
	return msg
}

func (e *BulkWriteError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
