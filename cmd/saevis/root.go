package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gnueaj/SAE-vis-sub000/internal/cli"
	"github.com/gnueaj/SAE-vis-sub000/internal/config"
	"github.com/gnueaj/SAE-vis-sub000/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "saevis",
	Short: "saevis classifies features into trees of subgroups and compares trees",
	Long: `saevis builds classification trees over a metric table by applying split stages
(range, flexible agreement, category groups, percentile, expression), and projects
the leaves of two trees onto each other as alluvial flows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Project file (default: ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().String("table", "", "Metric table path, overriding the project file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
}

// openRuntime loads the project file named by the flags and builds its engine.
// With the memory store the configured trees are built right away, since nothing persists
// between runs; persistent stores keep whatever "saevis build" stored last.
func openRuntime(ctx context.Context, cmd *cobra.Command) (*cli.Runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if table, _ := cmd.Flags().GetString("table"); table != "" {
		cfg.Table = table
	}

	levelName, _ := cmd.Flags().GetString("log-level")
	if levelName == "" {
		levelName = cfg.LogLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logger := logging.New(level)
	if asJSON, _ := cmd.Flags().GetBool("log-json"); asJSON {
		logger = logging.NewJSON(level)
	}

	rt, err := cli.NewRuntime(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Kind == config.StoreMemory {
		if _, err := rt.BuildTrees(ctx); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}
	return rt, nil
}
