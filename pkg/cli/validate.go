package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/cli/config"
	"github.com/secmon-lab/mnemora/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var policyCfg config.Policy

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the engine policy file",
		Flags:   policyCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			policy, err := policyCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "policy validation failed")
			}

			logger.Info("Policy validation passed",
				"path", policyCfg.Path(),
				"embedding_dimension", policy.EmbeddingDimension,
				"max_records", policy.MaxRecords,
				"min_relevance", policy.MinRelevance,
				"merge_threshold", policy.MergeThreshold,
				"ttl_classes", len(policy.ClassTTL),
			)
			return nil
		},
	}
}
