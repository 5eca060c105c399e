package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// GollemClient generates embeddings via a gollem LLM client. Results are
// cached by content hash so repeated texts cost a single provider call.
type GollemClient struct {
	client     gollem.LLMClient
	dimensions int

	mu    sync.Mutex
	cache map[string][]float32
}

func NewGollemClient(client gollem.LLMClient, dimensions int) *GollemClient {
	return &GollemClient{
		client:     client,
		dimensions: dimensions,
		cache:      make(map[string][]float32),
	}
}

func (c *GollemClient) Dimensions() int {
	return c.dimensions
}

func (c *GollemClient) Embed(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])

	c.mu.Lock()
	cached, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		vec := make([]float32, len(cached))
		copy(vec, cached)
		return vec, nil
	}

	embeddings, err := c.client.GenerateEmbedding(ctx, c.dimensions, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.New("embedding generation returned empty result")
	}
	if len(embeddings[0]) != c.dimensions {
		return nil, goerr.New("embedding dimension mismatch",
			goerr.V("expected", c.dimensions),
			goerr.V("actual", len(embeddings[0])),
		)
	}

	vec := make([]float32, c.dimensions)
	for i, v := range embeddings[0] {
		vec[i] = float32(v)
	}
	normalize(vec)

	c.mu.Lock()
	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.cache[key] = stored
	c.mu.Unlock()

	return vec, nil
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	mag := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / mag)
	}
}
