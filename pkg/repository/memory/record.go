package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemora/pkg/domain/model"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
)

// classKey is the composite uniqueness key for record entries
type classKey struct {
	class types.RecordClass
	key   string
}

type recordRepository struct {
	mu      sync.RWMutex
	records map[types.RecordID]*model.Record
	byKey   map[classKey]types.RecordID
}

func newRecordRepository() *recordRepository {
	return &recordRepository{
		records: make(map[types.RecordID]*model.Record),
		byKey:   make(map[classKey]types.RecordID),
	}
}

func (r *recordRepository) GetByKey(ctx context.Context, class types.RecordClass, key string) (*model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byKey[classKey{class: class, key: key}]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "no record for key",
			goerr.V("class", class), goerr.V("key", key))
	}

	return r.records[id].Clone(), nil
}

func (r *recordRepository) GetByID(ctx context.Context, id types.RecordID) (*model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "no record for id", goerr.V("recordID", id))
	}

	return rec.Clone(), nil
}

func (r *recordRepository) Put(ctx context.Context, rec *model.Record) (*model.Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid record")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.records[rec.ID]
	switch {
	case !exists && rec.Revision != 0:
		return nil, goerr.Wrap(ErrNotFound, "cannot update missing record",
			goerr.V("recordID", rec.ID))
	case exists && stored.Revision != rec.Revision:
		return nil, goerr.Wrap(ErrRevisionMismatch, "concurrent write detected",
			goerr.V("recordID", rec.ID),
			goerr.V("expected", rec.Revision),
			goerr.V("stored", stored.Revision),
		)
	}

	ck := classKey{class: rec.Class, key: rec.Key}
	if other, taken := r.byKey[ck]; taken && other != rec.ID {
		return nil, goerr.Wrap(ErrKeyConflict, "key already taken by another record",
			goerr.V("class", rec.Class),
			goerr.V("key", rec.Key),
			goerr.V("existingID", other),
		)
	}

	saved := rec.Clone()
	saved.Revision++
	r.records[saved.ID] = saved
	r.byKey[ck] = saved.ID

	return saved.Clone(), nil
}

func (r *recordRepository) Scan(ctx context.Context, filter interfaces.RecordFilter) ([]*model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Record, 0)
	for _, rec := range r.records {
		if matchesFilter(rec, filter) {
			result = append(result, rec.Clone())
		}
	}

	return result, nil
}

func (r *recordRepository) Delete(ctx context.Context, id types.RecordID, revision int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.deleteLocked(id, revision)
}

func (r *recordRepository) DeleteMany(ctx context.Context, refs []interfaces.RecordRef) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for _, ref := range refs {
		if err := r.deleteLocked(ref.ID, ref.Revision); err == nil {
			deleted++
		}
	}

	return deleted, nil
}

func (r *recordRepository) deleteLocked(id types.RecordID, revision int64) error {
	rec, exists := r.records[id]
	if !exists {
		return goerr.Wrap(ErrNotFound, "no record for id", goerr.V("recordID", id))
	}
	if rec.Revision != revision {
		return goerr.Wrap(ErrRevisionMismatch, "record changed since scan",
			goerr.V("recordID", id),
			goerr.V("expected", revision),
			goerr.V("stored", rec.Revision),
		)
	}

	delete(r.byKey, classKey{class: rec.Class, key: rec.Key})
	delete(r.records, id)
	return nil
}

func (r *recordRepository) Count(ctx context.Context, filter interfaces.RecordFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.records {
		if matchesFilter(rec, filter) {
			count++
		}
	}

	return count, nil
}

func matchesFilter(rec *model.Record, filter interfaces.RecordFilter) bool {
	if filter.Class != "" && rec.Class != filter.Class {
		return false
	}
	for _, tag := range filter.Tags {
		if !rec.HasTag(tag) {
			return false
		}
	}
	if filter.TaskType != "" && rec.Metadata[model.MetadataKeyTaskType] != filter.TaskType {
		return false
	}
	if !filter.IncludeExpired {
		now := filter.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		if rec.IsExpired(now) {
			return false
		}
	}
	return true
}
