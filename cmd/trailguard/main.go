package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/upb/trailguard/config"
	"github.com/upb/trailguard/internal/observability"
	"go.uber.org/zap"
)

var (
	Version = "dev"
	build   = "local"
)

// cli carries what PersistentPreRunE prepares for subcommands
type cli struct {
	envFile  string
	backend  string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "trailguard",
		Short:         "trailguard - sensitive CloudTrail activity as queryable incidents",
		Long:          "trailguard classifies CloudTrail audit events, records sensitive ones as incidents and serves paginated severity queries.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", "", "dotenv file to load (default ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&c.backend, "store", "", "incident store backend: postgres|dynamodb|redis|memory (overrides STORE_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug|info|warn|error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(
		newServeCmd(c),
		newConsumeCmd(c),
		newMigrateCmd(c),
		newSeedCmd(c),
		newQueryCmd(c),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads configuration and builds the logger
func (c *cli) setup() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", c.envFile, err)
		}
	} else {
		_ = godotenv.Load(".env")
	}

	cfg := config.Load()
	if c.backend != "" {
		cfg.Store.Backend = strings.ToLower(c.backend)
	}
	if c.logLevel != "" {
		cfg.Observability.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	c.cfg = cfg
	c.logger = logger.With(zap.String("environment", cfg.Environment))
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
