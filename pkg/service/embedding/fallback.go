package embedding

import (
	"context"
	"hash/fnv"
)

// FallbackClient generates deterministic pseudo-random unit vectors from a
// hash of the input text. The vectors carry no semantic meaning, but equal
// texts always map to equal vectors, so exact-key and duplicate detection
// still work when no embedding provider is configured.
type FallbackClient struct {
	dimensions int
}

func NewFallbackClient(dimensions int) *FallbackClient {
	return &FallbackClient{dimensions: dimensions}
}

func (c *FallbackClient) Dimensions() int {
	return c.dimensions
}

func (c *FallbackClient) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, c.dimensions)
	for i := range vec {
		state = state*6364136223846793005 + 1442695040888963407
		// take the high bits and map into [-1, 1)
		vec[i] = float32(int64(state>>11))/float32(1<<52) - 1.0
	}
	normalize(vec)
	return vec, nil
}
