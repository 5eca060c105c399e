package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/mnemora/pkg/domain/model"
	domainConfig "github.com/secmon-lab/mnemora/pkg/domain/model/config"
	"github.com/secmon-lab/mnemora/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// PolicyFile is the TOML representation of the engine policy. Every field
// is optional; omitted fields keep the built-in defaults.
type PolicyFile struct {
	EmbeddingDimension int     `toml:"embedding_dimension"`
	MaxRecords         int     `toml:"max_records"`
	MinRelevance       float64 `toml:"min_relevance"`
	MergeThreshold     float64 `toml:"merge_threshold"`

	Weights *model.ScoreWeights `toml:"weights"`

	// TTL maps record class names to Go duration strings, e.g.
	// exact_response = "1h"
	TTL map[string]string `toml:"ttl"`
}

// Policy holds the CLI flag pointing at the policy file
type Policy struct {
	path string
}

// Flags returns CLI flags for policy configuration
func (p *Policy) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy",
			Usage:       "Path to the engine policy TOML file (defaults apply when omitted)",
			Sources:     cli.EnvVars("MNEMORA_POLICY"),
			Destination: &p.path,
		},
	}
}

// Path returns the configured policy file path
func (p *Policy) Path() string {
	return p.path
}

// Configure builds the engine policy, loading the TOML file when one is
// configured.
func (p *Policy) Configure() (*domainConfig.Policy, error) {
	policy := domainConfig.DefaultPolicy()
	if p.path == "" {
		return policy, nil
	}

	file, err := LoadPolicyFile(p.path)
	if err != nil {
		return nil, err
	}
	if err := file.Apply(policy); err != nil {
		return nil, goerr.Wrap(err, "invalid policy file", goerr.V("path", p.path))
	}
	return policy, nil
}

// LoadPolicyFile loads a policy overlay from a TOML file
func LoadPolicyFile(path string) (*PolicyFile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", path))
	}

	var file PolicyFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML policy", goerr.V("path", path))
	}

	return &file, nil
}

// Apply overlays the file's values onto the policy and validates the result
func (f *PolicyFile) Apply(policy *domainConfig.Policy) error {
	if f.EmbeddingDimension > 0 {
		policy.EmbeddingDimension = f.EmbeddingDimension
	}
	if f.MaxRecords > 0 {
		policy.MaxRecords = f.MaxRecords
	}
	if f.MinRelevance > 0 {
		policy.MinRelevance = f.MinRelevance
	}
	if f.MergeThreshold > 0 {
		policy.MergeThreshold = f.MergeThreshold
	}
	if f.Weights != nil {
		policy.Weights = *f.Weights
	}

	for name, raw := range f.TTL {
		class, err := types.ParseRecordClass(name)
		if err != nil {
			return goerr.Wrap(err, "invalid record class in TTL table")
		}
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return goerr.Wrap(err, "invalid TTL duration",
				goerr.V("class", name), goerr.V("ttl", raw))
		}
		policy.ClassTTL[class] = ttl
	}

	return policy.Validate()
}
