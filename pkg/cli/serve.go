package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemora/pkg/cli/config"
	"github.com/secmon-lab/mnemora/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemora/pkg/service/worker"
	"github.com/secmon-lab/mnemora/pkg/usecase"
	"github.com/secmon-lab/mnemora/pkg/utils/logging"
	"github.com/secmon-lab/mnemora/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var interval time.Duration
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var policyCfg config.Policy
	var embeddingCfg config.Embedding

	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:        "maintenance-interval",
			Usage:       "Interval between background maintenance passes",
			Value:       time.Hour,
			Sources:     cli.EnvVars("MNEMORA_MAINTENANCE_INTERVAL"),
			Destination: &interval,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, policyCfg.Flags()...)
	flags = append(flags, embeddingCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the engine with periodic background maintenance until interrupted",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, repo, err := buildEngine(ctx, &repoCfg, &geminiCfg, &policyCfg, &embeddingCfg)
			if err != nil {
				return err
			}
			defer safe.Close(ctx, repo)

			w := worker.NewMaintenanceWorker(uc, interval)
			if err := w.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start maintenance worker")
			}

			sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			<-sigCtx.Done()
			logging.Default().Info("shutdown signal received")
			w.Stop()
			return nil
		},
	}
}

// buildEngine wires the repository, embedding resolver and policy into a
// ready-to-use engine.
func buildEngine(ctx context.Context, repoCfg *config.Repository, geminiCfg *config.Gemini, policyCfg *config.Policy, embeddingCfg *config.Embedding) (*usecase.UseCases, interfaces.Repository, error) {
	policy, err := policyCfg.Configure()
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load policy")
	}

	repo, err := repoCfg.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure repository")
	}

	llmClient, err := geminiCfg.Configure(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, nil, goerr.Wrap(err, "failed to configure Gemini client")
	}

	resolver, err := embeddingCfg.Configure(llmClient, policy.EmbeddingDimension)
	if err != nil {
		_ = repo.Close()
		return nil, nil, goerr.Wrap(err, "failed to configure embedding resolver")
	}

	uc := usecase.New(repo, resolver, usecase.WithPolicy(policy))
	return uc, repo, nil
}
