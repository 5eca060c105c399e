package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemora/pkg/utils/logging"
)

// ErrUnavailable is returned when no embedding can be produced under the
// configured fallback policy.
var ErrUnavailable = goerr.New("embedding unavailable")

// FallbackPolicy controls when the deterministic fallback generator is used
// instead of the configured provider.
type FallbackPolicy string

const (
	// FallbackDisabled never uses the fallback generator
	FallbackDisabled FallbackPolicy = "disabled"

	// FallbackWhenUnconfigured uses the fallback only when no provider is
	// configured
	FallbackWhenUnconfigured FallbackPolicy = "when-unconfigured"

	// FallbackOnError additionally falls back when the provider returns an
	// error
	FallbackOnError FallbackPolicy = "on-error"
)

func (p FallbackPolicy) IsValid() bool {
	switch p {
	case FallbackDisabled, FallbackWhenUnconfigured, FallbackOnError:
		return true
	}
	return false
}

func (p FallbackPolicy) String() string {
	return string(p)
}

func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	p := FallbackPolicy(s)
	if !p.IsValid() {
		return "", goerr.New("invalid fallback policy", goerr.V("policy", s))
	}
	return p, nil
}

// Resolver picks between a primary embedding client and the deterministic
// fallback according to the fallback policy. The primary may be nil.
type Resolver struct {
	primary  interfaces.EmbeddingClient
	fallback interfaces.EmbeddingClient
	policy   FallbackPolicy
}

func NewResolver(primary interfaces.EmbeddingClient, dimensions int, policy FallbackPolicy) (*Resolver, error) {
	if !policy.IsValid() {
		return nil, goerr.New("invalid fallback policy", goerr.V("policy", policy))
	}
	return &Resolver{
		primary:  primary,
		fallback: NewFallbackClient(dimensions),
		policy:   policy,
	}, nil
}

func (r *Resolver) Dimensions() int {
	return r.fallback.Dimensions()
}

// Resolve returns an embedding for the text and whether the fallback
// generator produced it.
func (r *Resolver) Resolve(ctx context.Context, text string) ([]float32, bool, error) {
	if r.primary == nil {
		if r.policy == FallbackDisabled {
			return nil, false, goerr.Wrap(ErrUnavailable, "no embedding client configured")
		}
		vec, err := r.fallback.Embed(ctx, text)
		if err != nil {
			return nil, false, err
		}
		return vec, true, nil
	}

	vec, err := r.primary.Embed(ctx, text)
	if err != nil {
		if r.policy != FallbackOnError {
			return nil, false, goerr.Wrap(err, "failed to generate embedding")
		}
		logging.From(ctx).Warn("embedding provider failed, using fallback", "error", err)
		vec, err := r.fallback.Embed(ctx, text)
		if err != nil {
			return nil, false, err
		}
		return vec, true, nil
	}
	return vec, false, nil
}
