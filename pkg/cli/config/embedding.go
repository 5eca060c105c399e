package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemora/pkg/service/embedding"
	"github.com/secmon-lab/mnemora/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Embedding holds CLI flags for the embedding fallback policy
type Embedding struct {
	fallbackPolicy string
}

// Flags returns CLI flags for embedding configuration
func (e *Embedding) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "embedding-fallback",
			Usage:       "When to use deterministic fallback embeddings (disabled, when-unconfigured, on-error)",
			Value:       string(embedding.FallbackWhenUnconfigured),
			Sources:     cli.EnvVars("MNEMORA_EMBEDDING_FALLBACK"),
			Destination: &e.fallbackPolicy,
		},
	}
}

// Configure builds the embedding resolver: a gollem-backed provider when an
// LLM client is available, plus the deterministic fallback under the
// configured policy.
func (e *Embedding) Configure(llmClient gollem.LLMClient, dimensions int) (*embedding.Resolver, error) {
	raw := e.fallbackPolicy
	if raw == "" {
		raw = string(embedding.FallbackWhenUnconfigured)
	}
	policy, err := embedding.ParseFallbackPolicy(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid embedding fallback policy")
	}

	var primary *embedding.GollemClient
	if llmClient != nil {
		primary = embedding.NewGollemClient(llmClient, dimensions)
	} else {
		logging.Default().Warn("no embedding provider configured",
			"fallback_policy", policy.String())
	}

	if primary == nil {
		return embedding.NewResolver(nil, dimensions, policy)
	}
	return embedding.NewResolver(primary, dimensions, policy)
}
