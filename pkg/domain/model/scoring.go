package model

import (
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ErrDimensionMismatch indicates two vectors of different length were
// compared. This is a programming error, never coerced to zero similarity.
var ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors, in [-1, 1]. A zero-magnitude vector yields 0, not an error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, goerr.Wrap(ErrDimensionMismatch, "cannot compare vectors",
			goerr.V("lenA", len(a)),
			goerr.V("lenB", len(b)),
		)
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, nil
	}

	return dot / denom, nil
}

// Scoring policy constants. Kept as data rather than inline magic so the
// composite score can be tuned and tested independently of call sites.
const (
	// usageSaturationCount is the access count at which the usage term saturates
	usageSaturationCount = 100
	// recencyHorizonDays is the age at which the recency term bottoms out
	recencyHorizonDays = 30
	// recencyFloor keeps old records from being fully discounted
	recencyFloor = 0.1
)

// ScoreWeights holds the weights of the composite relevance score.
// The four weights are expected to sum to 1.
type ScoreWeights struct {
	Similarity    float64 `toml:"similarity"`
	BaseRelevance float64 `toml:"base_relevance"`
	Usage         float64 `toml:"usage"`
	Recency       float64 `toml:"recency"`
}

// DefaultScoreWeights returns the standard scoring policy
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Similarity:    0.4,
		BaseRelevance: 0.3,
		Usage:         0.2,
		Recency:       0.1,
	}
}

// Validate checks that the weights are non-negative and sum to 1
func (w ScoreWeights) Validate() error {
	for name, v := range map[string]float64{
		"similarity":     w.Similarity,
		"base_relevance": w.BaseRelevance,
		"usage":          w.Usage,
		"recency":        w.Recency,
	} {
		if v < 0 {
			return goerr.New("score weight must be non-negative",
				goerr.V("weight", name), goerr.V("value", v))
		}
	}

	sum := w.Similarity + w.BaseRelevance + w.Usage + w.Recency
	if math.Abs(sum-1.0) > 1e-9 {
		return goerr.New("score weights must sum to 1", goerr.V("sum", sum))
	}
	return nil
}

// Relevance computes the composite relevance of a record for a query:
// a weighted sum of query similarity, the record's base relevance, a
// saturating usage term, and a recency term with a floor. The result is
// clamped into [0, 1].
func (w ScoreWeights) Relevance(similarity, baseRelevance float64, accessCount int64, lastAccessedAt, now time.Time) float64 {
	usage := float64(accessCount) / usageSaturationCount
	if usage > 1 {
		usage = 1
	}

	ageInDays := now.Sub(lastAccessedAt).Hours() / 24
	recency := 1 - ageInDays/recencyHorizonDays
	if recency < recencyFloor {
		recency = recencyFloor
	}

	score := w.Similarity*similarity +
		w.BaseRelevance*baseRelevance +
		w.Usage*usage +
		w.Recency*recency

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
