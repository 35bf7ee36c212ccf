package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"droneops-mission/internal/config"
	"droneops-mission/internal/logging"
)

var (
	configPath string
	schemaPath string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:          "missionctl",
	Short:        "Drone mission orchestration toolkit",
	Long:         "missionctl generates survey plans, runs vehicle navigators and the investigation coordinator, and replays recorded telemetry.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/mission.yaml", "Path to mission configuration YAML")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "schemas/mission.cue", "Path to CUE schema file (empty to skip validation)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Mirror logs into a rotated file")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(vehicleCmd)
	rootCmd.AddCommand(coordinateCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// setup loads the configuration and returns a signal-aware context that
// carries the process logger. quiet keeps logs off STDOUT.
func setup(cmd *cobra.Command, quiet bool) (context.Context, context.CancelFunc, *config.Config, error) {
	cfg, err := config.Load(configPath, schemaPath)
	if err != nil {
		return nil, nil, nil, err
	}
	opts := logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Quiet: quiet}
	if logLevel != "" {
		opts.Level = logLevel
	}
	if logFile != "" {
		opts.File = logFile
	}
	log := logging.New(opts).With("mission_id", cfg.MissionID)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	return logging.NewContext(ctx, log), cancel, cfg, nil
}

// commandLogger builds a logger for commands that run without a config file.
func commandLogger(cmd *cobra.Command) context.Context {
	level := logLevel
	if level == "" {
		level = "info"
	}
	return logging.NewContext(cmd.Context(), logging.New(logging.Options{Level: level, File: logFile}))
}
