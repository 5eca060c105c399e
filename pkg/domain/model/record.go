package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
)

// MetadataKeyTaskType is the one metadata key the engine itself reads.
// It is usable as a scan filter; all other metadata is opaque to the core.
const MetadataKeyTaskType = "task_type"

// Record is the unit stored and retrieved by the engine. It covers both
// short-lived cache entries and durable long-term memory entries; the
// class only changes default TTL and tags, never the retrieval algorithm.
type Record struct {
	ID    types.RecordID
	Class types.RecordClass

	// Key is derived deterministically from the semantically meaningful
	// part of the input (see DeriveKey). (Class, Key) is unique: repeat
	// writes update in place.
	Key string

	Content   string `masq:"secret"`
	Embedding []float32

	// FallbackEmbedding marks that the vector came from the deterministic
	// fallback generator rather than a real provider. Such vectors are
	// reproducible but not semantically meaningful.
	FallbackEmbedding bool

	Metadata map[string]string `masq:"secret"`
	Tags     []string

	// BaseRelevance reflects long-run trust in this record, independent
	// of any particular query. Always within [0, 1].
	BaseRelevance float64

	AccessCount    int64
	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpiresAt      *time.Time

	// Revision is the optimistic concurrency token. Repositories bump it
	// on every successful write and reject conditional writes or deletes
	// whose expected revision is stale.
	Revision int64
}

// Validate checks structural invariants of the record
func (r *Record) Validate() error {
	if r.ID == "" {
		return goerr.New("record ID is required")
	}
	if !r.Class.IsValid() {
		return goerr.New("invalid record class", goerr.V("class", r.Class))
	}
	if r.Key == "" {
		return goerr.New("record key is required", goerr.V("id", r.ID))
	}
	if r.BaseRelevance < 0 || r.BaseRelevance > 1 {
		return goerr.New("base relevance out of range",
			goerr.V("id", r.ID),
			goerr.V("baseRelevance", r.BaseRelevance),
		)
	}
	if r.AccessCount < 0 {
		return goerr.New("negative access count", goerr.V("id", r.ID))
	}
	return nil
}

// IsExpired reports whether the record is logically dead at the given time.
// Expired records are invisible to lookup even before the reaper deletes them.
func (r *Record) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// HasTag reports whether the record carries the given tag
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	copied := *r
	if r.Embedding != nil {
		copied.Embedding = make([]float32, len(r.Embedding))
		copy(copied.Embedding, r.Embedding)
	}
	if r.Metadata != nil {
		copied.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			copied.Metadata[k] = v
		}
	}
	if r.Tags != nil {
		copied.Tags = make([]string, len(r.Tags))
		copy(copied.Tags, r.Tags)
	}
	if r.ExpiresAt != nil {
		expires := *r.ExpiresAt
		copied.ExpiresAt = &expires
	}
	return &copied
}

// Touch records a read hit at the given time
func (r *Record) Touch(now time.Time) {
	r.AccessCount++
	r.LastAccessedAt = now
}
