package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/mnemora/pkg/domain/model"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
)

// Repository defines the interface for data persistence
type Repository interface {
	Record() RecordRepository

	Close() error
}

// RecordFilter selects a subset of the record population for Scan/Count.
// Zero values mean "no constraint" except Now, which callers must set
// when IncludeExpired is false.
type RecordFilter struct {
	// Class restricts the scan to a single record class
	Class types.RecordClass

	// Tags restricts to records carrying ALL of the given tags
	Tags []string

	// TaskType matches against the task_type metadata key
	TaskType string

	// IncludeExpired makes logically dead records visible to the scan.
	// The expiry reaper is the only intended user.
	IncludeExpired bool

	// Now is the reference time for expiry checks
	Now time.Time
}

// RecordRef identifies a record together with the revision the caller
// observed. Conditional deletes succeed only when the stored revision
// still matches.
type RecordRef struct {
	ID       types.RecordID
	Revision int64
}

// RecordRepository defines the interface for Record data persistence.
//
// All mutations use optimistic concurrency: Put and Delete compare the
// record's Revision against the stored one and fail with
// ErrRevisionMismatch when another writer got there first. Callers
// re-read and retry.
type RecordRepository interface {
	// GetByKey retrieves the record with the given (class, key) pair.
	// Returns ErrNotFound when absent.
	GetByKey(ctx context.Context, class types.RecordClass, key string) (*model.Record, error)

	// GetByID retrieves a record by its ID. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id types.RecordID) (*model.Record, error)

	// Put creates the record when its Revision is zero, or replaces the
	// stored record when the Revision matches the stored one. The stored
	// revision is incremented on success and reflected in the returned
	// record. All fields are written atomically: a concurrent reader sees
	// either the previous record or the new one, never a mix.
	Put(ctx context.Context, rec *model.Record) (*model.Record, error)

	// Scan returns copies of all records matching the filter. Mutating
	// the returned records does not affect the store.
	Scan(ctx context.Context, filter RecordFilter) ([]*model.Record, error)

	// Delete removes the record if its stored revision matches.
	Delete(ctx context.Context, id types.RecordID, revision int64) error

	// DeleteMany conditionally removes a batch of records, skipping refs
	// whose revision no longer matches or that are already gone. Returns
	// the number actually deleted.
	DeleteMany(ctx context.Context, refs []RecordRef) (int, error)

	// Count returns the number of records matching the filter
	Count(ctx context.Context, filter RecordFilter) (int, error)
}
