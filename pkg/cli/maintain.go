package cli

import (
	"context"
	"time"

	"github.com/secmon-lab/mnemora/pkg/cli/config"
	"github.com/secmon-lab/mnemora/pkg/service/worker"
	"github.com/secmon-lab/mnemora/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdMaintain() *cli.Command {
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var policyCfg config.Policy
	var embeddingCfg config.Embedding

	var flags []cli.Flag
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, policyCfg.Flags()...)
	flags = append(flags, embeddingCfg.Flags()...)

	return &cli.Command{
		Name:    "maintain",
		Aliases: []string{"m"},
		Usage:   "Run a single consolidation and expiry cleanup pass",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, repo, err := buildEngine(ctx, &repoCfg, &geminiCfg, &policyCfg, &embeddingCfg)
			if err != nil {
				return err
			}
			defer safe.Close(ctx, repo)

			w := worker.NewMaintenanceWorker(uc, time.Hour)
			return w.RunOnce(ctx)
		},
	}
}
