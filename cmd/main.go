// Package main is the entry point for the comps CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/comps/internal/adapters/repository"
	service "github.com/okian/comps/internal/app"
	"github.com/okian/comps/internal/config"
	"github.com/okian/comps/pkg/logger"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Configuration is loaded once in the
// persistent pre-run and shared through the command context.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "comps",
		Short: "Industrial property comparables engine",
		Long: `comps finds comparable industrial properties for a target parcel and scores
them on location, size, zoning, value and age.

Configuration is layered: built-in defaults, then the YAML file named by
COMPS_CONFIG, then COMPS_* environment variables.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if err := logger.SetLevelString(cfg.LogLevel); err != nil {
				logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
				_ = logger.SetLevelString("info")
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}
	root.AddCommand(newServeCmd(), newRankCmd(), newImportCmd())
	return root
}

type configKey struct{}

// configFrom returns the config loaded by the root pre-run.
func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.New()
}

// newService opens the configured store and wraps it in a service.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.SeedOrDSN())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	return service.New(
		service.WithStore(store),
		service.WithLogger(log),
		service.WithRankingConfig(cfg.Ranking()),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithScoringConcurrency(cfg.ScoringConcurrency),
		service.WithDedupeTTL(cfg.DedupeTTL()),
		service.WithCacheTTL(cfg.CacheTTL()),
		service.WithResultTTL(cfg.JobResultTTL()),
		service.WithCandidatePool(cfg.CandidatePoolSize, cfg.MinSameCounty),
		service.WithMaxPoolSize(cfg.MaxPoolSize),
		service.WithCounties(cfg.Counties),
	), nil
}
