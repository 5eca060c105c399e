package usecase

import (
	"sync/atomic"
	"time"

	"github.com/secmon-lab/mnemora/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemora/pkg/domain/model/config"
	"github.com/secmon-lab/mnemora/pkg/service/embedding"
)

// revisionRetryLimit bounds optimistic concurrency retries on access
// bookkeeping writes.
const revisionRetryLimit = 3

type UseCases struct {
	repo     interfaces.Repository
	embedder *embedding.Resolver
	policy   *config.Policy
	now      func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

type Option func(*UseCases)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func WithPolicy(policy *config.Policy) Option {
	return func(uc *UseCases) {
		uc.policy = policy
	}
}

func New(repo interfaces.Repository, embedder *embedding.Resolver, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:     repo,
		embedder: embedder,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.policy == nil {
		uc.policy = config.DefaultPolicy()
	}

	return uc
}
