package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/rferag/internal/config"
	"github.com/ChamsBouzaiene/rferag/internal/engine"
	"github.com/ChamsBouzaiene/rferag/internal/factory"
	"github.com/ChamsBouzaiene/rferag/internal/logging"
)

var (
	configDir   string
	verbose     bool
	provider    string
	model       string
	datasources []string
	timeout     time.Duration

	cfg    *config.Config
	cfgMgr *config.Manager
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rferag",
	Short: "Answer questions about local files by exploring them recursively",
	Long: `rferag answers a question about one or more directory trees. A model
looks at the list of files, picks the ones worth reading, has a reader
agent extract what matters from each, folds the findings into a running
summary and repeats until it knows enough, then writes the answer.

Text, tabular (csv, xlsx, parquet), image and notebook files are supported.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		if configDir != "" {
			cfgMgr = config.NewManagerAt(configDir)
		} else {
			var err error
			if cfgMgr, err = config.NewManager(); err != nil {
				return err
			}
		}

		var err error
		if cfg, err = cfgMgr.Load(); err != nil {
			return err
		}
		if err := cfg.ApplyEnv(nil); err != nil {
			return err
		}
		if provider != "" {
			cfg.Provider = provider
		}
		if model != "" {
			cfg.Model = model
		}
		cfg.Datasources.Paths = append(cfg.Datasources.Paths, datasources...)
		if verbose {
			cfg.Log.Level = "debug"
			cfg.Log.Development = true
		}

		logger, err = logging.New(cfg.Log)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default: user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "LLM provider (or set RFERAG_PROVIDER / LLM_PROVIDER)")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "Model name (default: provider default)")
	rootCmd.PersistentFlags().StringArrayVarP(&datasources, "datasource", "d", nil, "Directory to explore (repeatable)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Timeout per question (0: none)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

// buildApp builds an explorer from the loaded configuration.
func buildApp(ctx context.Context, hooks ...engine.Hook) (*factory.App, error) {
	return factory.Build(ctx, factory.Options{
		Config:    cfg,
		ConfigDir: cfgMgr.Dir(),
		Logger:    logger,
		Hooks:     hooks,
	})
}

// withTimeout applies --timeout to ctx.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
