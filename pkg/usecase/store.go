package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemora/pkg/domain/model"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
	"github.com/secmon-lab/mnemora/pkg/utils/logging"
)

// Feedback adjustment deltas. Negative feedback weighs heavier so a few
// bad signals outweigh a streak of good ones.
const (
	positiveFeedbackDelta = 0.05
	negativeFeedbackDelta = -0.1
)

// StoreInput describes a record to store. When Key is empty the lookup
// key derives from Content itself.
type StoreInput struct {
	Class    types.RecordClass
	Key      string
	Content  string
	Metadata map[string]string
	Tags     []string

	// TTL overrides the class default expiry. Zero means use the class
	// default; negative means no expiry even if the class defines one.
	TTL time.Duration
}

// Store persists a record. A record already holding the same (class, key)
// pair is updated in place rather than duplicated: content, metadata,
// tags and embedding are replaced, the access count is bumped and the
// expiry is refreshed. Storing may evict the least recently accessed
// records when the population exceeds capacity.
func (uc *UseCases) Store(ctx context.Context, input StoreInput) (types.RecordID, error) {
	if !input.Class.IsValid() {
		return "", goerr.New("invalid record class", goerr.V("class", input.Class))
	}
	if input.Content == "" {
		return "", goerr.New("record content must not be empty")
	}

	keyText := input.Key
	if keyText == "" {
		keyText = input.Content
	}
	key := model.DeriveKey(keyText)

	vec, usedFallback, err := uc.embedder.Resolve(ctx, input.Content)
	if err != nil {
		return "", goerr.Wrap(ErrEmbeddingUnavailable, "cannot embed content", goerr.V("cause", err))
	}

	// A revision mismatch means a concurrent writer updated the same
	// record; a key conflict means a concurrent writer created it first.
	// Either way the next attempt re-reads by key and lands as an update.
	var id types.RecordID
	for i := 0; i < revisionRetryLimit; i++ {
		id, err = uc.upsert(ctx, input, key, vec, usedFallback)
		if err == nil {
			break
		}
		if !errors.Is(err, interfaces.ErrRevisionMismatch) && !errors.Is(err, interfaces.ErrKeyConflict) {
			return "", err
		}
	}
	if err != nil {
		return "", goerr.Wrap(ErrRevisionRetryExceeded, "store lost too many races", goerr.V("key", key))
	}

	if err := uc.enforceCapacity(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (uc *UseCases) upsert(ctx context.Context, input StoreInput, key string, vec []float32, usedFallback bool) (types.RecordID, error) {
	now := uc.now()
	expiresAt := uc.expiryFor(input.Class, input.TTL, now)

	existing, err := uc.repo.Record().GetByKey(ctx, input.Class, key)
	if err != nil && !errors.Is(err, interfaces.ErrRecordNotFound) {
		return "", goerr.Wrap(err, "failed to check for existing record")
	}

	var rec *model.Record
	if existing != nil {
		rec = existing
		rec.Content = input.Content
		rec.Metadata = input.Metadata
		rec.Tags = input.Tags
		rec.Embedding = vec
		rec.FallbackEmbedding = usedFallback
		rec.AccessCount++
		rec.LastAccessedAt = now
		rec.ExpiresAt = expiresAt
	} else {
		rec = &model.Record{
			ID:                types.NewRecordID(),
			Class:             input.Class,
			Key:               key,
			Content:           input.Content,
			Embedding:         vec,
			FallbackEmbedding: usedFallback,
			Metadata:          input.Metadata,
			Tags:              input.Tags,
			BaseRelevance:     1.0,
			AccessCount:       1,
			CreatedAt:         now,
			LastAccessedAt:    now,
			ExpiresAt:         expiresAt,
		}
	}

	stored, err := uc.repo.Record().Put(ctx, rec)
	if err != nil {
		return "", err
	}
	return stored.ID, nil
}

func (uc *UseCases) expiryFor(class types.RecordClass, ttl time.Duration, now time.Time) *time.Time {
	if ttl < 0 {
		return nil
	}
	if ttl == 0 {
		ttl = uc.policy.TTLFor(class)
	}
	if ttl <= 0 {
		return nil
	}
	at := now.Add(ttl)
	return &at
}

// enforceCapacity evicts the least recently accessed records when the
// live population exceeds the configured maximum.
func (uc *UseCases) enforceCapacity(ctx context.Context) error {
	now := uc.now()
	count, err := uc.repo.Record().Count(ctx, interfaces.RecordFilter{Now: now})
	if err != nil {
		return goerr.Wrap(err, "failed to count records")
	}
	if count <= uc.policy.MaxRecords {
		return nil
	}

	records, err := uc.repo.Record().Scan(ctx, interfaces.RecordFilter{Now: now})
	if err != nil {
		return goerr.Wrap(err, "failed to scan records for eviction")
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].LastAccessedAt.Before(records[j].LastAccessedAt)
	})

	batch := uc.policy.EvictionBatchSize()
	if batch > len(records) {
		batch = len(records)
	}
	refs := make([]interfaces.RecordRef, 0, batch)
	for _, rec := range records[:batch] {
		refs = append(refs, interfaces.RecordRef{ID: rec.ID, Revision: rec.Revision})
	}

	deleted, err := uc.repo.Record().DeleteMany(ctx, refs)
	if err != nil {
		return goerr.Wrap(err, "failed to evict records")
	}
	logging.From(ctx).Info("evicted least recently accessed records",
		"candidates", len(refs), "deleted", deleted)

	count, err = uc.repo.Record().Count(ctx, interfaces.RecordFilter{Now: now})
	if err != nil {
		return goerr.Wrap(err, "failed to recount records")
	}
	if count > uc.policy.MaxRecords {
		return goerr.Wrap(ErrCapacityExceeded, "population still over capacity after eviction",
			goerr.V("count", count), goerr.V("max", uc.policy.MaxRecords))
	}
	return nil
}

// UpdateRelevance applies caller feedback to a record's base relevance.
// Positive feedback nudges it up, negative feedback pushes it down harder.
// Applying feedback counts as an access.
func (uc *UseCases) UpdateRelevance(ctx context.Context, id types.RecordID, feedback types.Feedback) error {
	if !feedback.IsValid() {
		return goerr.New("invalid feedback", goerr.V("feedback", feedback))
	}

	for i := 0; i < revisionRetryLimit; i++ {
		rec, err := uc.repo.Record().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, interfaces.ErrRecordNotFound) {
				return goerr.Wrap(ErrRecordNotFound, "cannot apply feedback", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to load record", goerr.V("id", id))
		}

		delta := positiveFeedbackDelta
		if feedback == types.FeedbackNegative {
			delta = negativeFeedbackDelta
		}
		rec.BaseRelevance += delta
		if rec.BaseRelevance < 0 {
			rec.BaseRelevance = 0
		}
		if rec.BaseRelevance > 1 {
			rec.BaseRelevance = 1
		}
		rec.Touch(uc.now())

		if _, err := uc.repo.Record().Put(ctx, rec); err == nil {
			return nil
		} else if !errors.Is(err, interfaces.ErrRevisionMismatch) {
			return goerr.Wrap(err, "failed to update relevance", goerr.V("id", id))
		}
	}
	return goerr.Wrap(ErrRevisionRetryExceeded, "feedback lost too many races", goerr.V("id", id))
}
