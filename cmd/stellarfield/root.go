package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivlev/stellarfield/internal/config"
	"github.com/ivlev/stellarfield/internal/logging"
)

// commandContext carries what every subcommand needs: the loaded config and
// the logger.
type commandContext struct {
	configPath string
	logLevel   string
	seed       int64

	cfg    *config.Config
	logger *slog.Logger
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.seed != 0 {
		cfg.Seed = c.seed
	}
	level := cfg.LogLevel
	if c.logLevel != "" {
		level = c.logLevel
	}
	c.cfg = cfg
	c.logger = logging.New(os.Stderr, logging.ParseLevel(level))
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "stellarfield",
		Short:         "Turn star field images into parallax zoom videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (.yaml, .yml, .json, .toml)")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Int64Var(&ctx.seed, "seed", 0, "Random seed for procedural particles (0 = time based)")

	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newSnapshotCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := config.Write(&cfg, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[+++] Конфигурация записана: %s\n", args[0])
			return nil
		},
	})
	return cmd
}
