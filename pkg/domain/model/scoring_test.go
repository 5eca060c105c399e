package model_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemora/pkg/domain/model"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors score 1", func(t *testing.T) {
		v := []float32{0.3, 0.4, 0.5}
		sim, err := model.CosineSimilarity(v, v)
		gt.NoError(t, err).Required()
		gt.Bool(t, math.Abs(sim-1.0) < 1e-9).True()
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		sim, err := model.CosineSimilarity([]float32{1, 0}, []float32{0, 1})
		gt.NoError(t, err).Required()
		gt.Bool(t, math.Abs(sim) < 1e-9).True()
	})

	t.Run("opposite vectors score -1", func(t *testing.T) {
		sim, err := model.CosineSimilarity([]float32{1, 2}, []float32{-1, -2})
		gt.NoError(t, err).Required()
		gt.Bool(t, math.Abs(sim+1.0) < 1e-9).True()
	})

	t.Run("dimension mismatch fails fast", func(t *testing.T) {
		_, err := model.CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, model.ErrDimensionMismatch)).True()
	})

	t.Run("zero magnitude yields 0 not error", func(t *testing.T) {
		sim, err := model.CosineSimilarity([]float32{0, 0}, []float32{1, 2})
		gt.NoError(t, err).Required()
		gt.Value(t, sim).Equal(0.0)
	})
}

func TestScoreWeightsValidate(t *testing.T) {
	t.Run("default weights are valid", func(t *testing.T) {
		gt.NoError(t, model.DefaultScoreWeights().Validate())
	})

	t.Run("weights must sum to 1", func(t *testing.T) {
		w := model.ScoreWeights{Similarity: 0.5, BaseRelevance: 0.5, Usage: 0.5, Recency: 0.5}
		gt.Value(t, w.Validate()).NotNil()
	})

	t.Run("negative weight rejected", func(t *testing.T) {
		w := model.ScoreWeights{Similarity: 1.2, BaseRelevance: -0.2, Usage: 0, Recency: 0}
		gt.Value(t, w.Validate()).NotNil()
	})
}

func TestRelevance(t *testing.T) {
	weights := model.DefaultScoreWeights()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fresh heavily used trusted record with perfect similarity scores 1", func(t *testing.T) {
		score := weights.Relevance(1.0, 1.0, 100, now, now)
		gt.Bool(t, math.Abs(score-1.0) < 1e-9).True()
	})

	t.Run("weighted sum matches policy", func(t *testing.T) {
		// similarity 0.8*0.4 + base 0.5*0.3 + usage (50/100)*0.2 + recency 1.0*0.1
		score := weights.Relevance(0.8, 0.5, 50, now, now)
		gt.Bool(t, math.Abs(score-(0.32+0.15+0.10+0.10)) < 1e-9).True()
	})

	t.Run("usage term saturates at 100 accesses", func(t *testing.T) {
		at100 := weights.Relevance(0, 0, 100, now, now)
		at1000 := weights.Relevance(0, 0, 1000, now, now)
		gt.Value(t, at100).Equal(at1000)
	})

	t.Run("recency floors at 0.1 beyond 30 days", func(t *testing.T) {
		at31d := weights.Relevance(0, 0, 0, now.AddDate(0, 0, -31), now)
		at10y := weights.Relevance(0, 0, 0, now.AddDate(-10, 0, 0), now)
		gt.Value(t, at31d).Equal(at10y)
		gt.Bool(t, math.Abs(at31d-0.1*0.1) < 1e-9).True()
	})

	t.Run("recency decays linearly", func(t *testing.T) {
		at15d := weights.Relevance(0, 0, 0, now.AddDate(0, 0, -15), now)
		gt.Bool(t, math.Abs(at15d-0.1*0.5) < 1e-9).True()
	})

	t.Run("negative similarity cannot push score below 0", func(t *testing.T) {
		score := weights.Relevance(-1.0, 0, 0, now.AddDate(0, 0, -31), now)
		gt.Value(t, score).Equal(0.0)
	})
}
