package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/domain/model"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
)

// Default policy values. Dimension matches the common embedding model
// output used by the deployment (text-embedding class models).
const (
	DefaultEmbeddingDimension = 1536
	DefaultMaxRecords         = 10000
	DefaultMinRelevance       = 0.7
	DefaultMergeThreshold     = 0.95
	DefaultLookupLimit        = 5
)

// Policy is the tunable behavior of the engine: capacity, thresholds,
// scoring weights and per-class TTL defaults. It is built once at startup
// and injected into the use cases.
type Policy struct {
	// EmbeddingDimension is the fixed vector length of this deployment.
	// All stored and queried embeddings must have exactly this length.
	EmbeddingDimension int

	// MaxRecords bounds the live record population. Exceeding it triggers
	// a batch eviction of the least recently accessed records.
	MaxRecords int

	// MinRelevance is the default lookup threshold when the caller does
	// not supply one.
	MinRelevance float64

	// MergeThreshold is the pairwise cosine similarity above which
	// consolidation merges two records of the same class.
	MergeThreshold float64

	// Weights is the composite relevance scoring policy.
	Weights model.ScoreWeights

	// ClassTTL holds per-class default TTLs applied when a store call
	// does not specify one. Classes without an entry get no expiry.
	ClassTTL map[types.RecordClass]time.Duration
}

// DefaultPolicy returns the standard engine policy
func DefaultPolicy() *Policy {
	return &Policy{
		EmbeddingDimension: DefaultEmbeddingDimension,
		MaxRecords:         DefaultMaxRecords,
		MinRelevance:       DefaultMinRelevance,
		MergeThreshold:     DefaultMergeThreshold,
		Weights:            model.DefaultScoreWeights(),
		ClassTTL: map[types.RecordClass]time.Duration{
			types.ClassExactResponse: time.Hour,
			types.ClassStageOutput:   24 * time.Hour,
		},
	}
}

// Validate checks if the Policy is valid
func (p *Policy) Validate() error {
	if p.EmbeddingDimension <= 0 {
		return goerr.New("embedding dimension must be positive",
			goerr.V("dimension", p.EmbeddingDimension))
	}
	if p.MaxRecords <= 0 {
		return goerr.New("max records must be positive",
			goerr.V("maxRecords", p.MaxRecords))
	}
	if p.MinRelevance < 0 || p.MinRelevance > 1 {
		return goerr.New("min relevance must be within [0,1]",
			goerr.V("minRelevance", p.MinRelevance))
	}
	if p.MergeThreshold <= 0 || p.MergeThreshold > 1 {
		return goerr.New("merge threshold must be within (0,1]",
			goerr.V("mergeThreshold", p.MergeThreshold))
	}
	if err := p.Weights.Validate(); err != nil {
		return goerr.Wrap(err, "invalid score weights")
	}
	for class, ttl := range p.ClassTTL {
		if !class.IsValid() {
			return goerr.New("invalid record class in TTL table",
				goerr.V("class", class))
		}
		if ttl <= 0 {
			return goerr.New("class TTL must be positive",
				goerr.V("class", class), goerr.V("ttl", ttl))
		}
	}
	return nil
}

// EvictionBatchSize returns how many records a single eviction pass
// removes: 10% of capacity, at least one.
func (p *Policy) EvictionBatchSize() int {
	batch := p.MaxRecords / 10
	if batch < 1 {
		batch = 1
	}
	return batch
}

// TTLFor returns the default TTL for a class, or zero when the class
// has no default expiry.
func (p *Policy) TTLFor(class types.RecordClass) time.Duration {
	return p.ClassTTL[class]
}
