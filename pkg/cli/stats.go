package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/cli/config"
	"github.com/secmon-lab/mnemora/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdStats() *cli.Command {
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
		Name:  "stats",
		Usage: "Print a rollup of the record population as JSON",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, repo, err := buildEngine(ctx, &repoCfg, &geminiCfg, &policyCfg, &embeddingCfg)
			if err != nil {
				return err
			}
			defer safe.Close(ctx, repo)

			stats, err := uc.GetStats(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to collect stats")
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(stats); err != nil {
				return goerr.Wrap(err, "failed to encode stats")
			}
			return nil
		},
	}
}
