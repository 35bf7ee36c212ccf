package main

import (
	"github.com/spf13/cobra"

	"droneops-mission/internal/logging"
	"droneops-mission/internal/telemetry"
)

var (
	replayInput string
	replaySpeed float64
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded readings log",
	Long:  "replay feeds readings from a JSONL log back into GreptimeDB, preserving their original spacing scaled by --speed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, cfg, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer cancel()
		log := logging.FromContext(ctx)

		store, client, err := newStore(cfg.Greptime)
		if err != nil {
			return err
		}
		if client == nil {
			log.Warn("no GreptimeDB endpoint configured, replaying into memory")
		}
		n, err := telemetry.ReplayLogFile(ctx, replayInput, store, replaySpeed)
		log.Info("replay finished", "readings", n, "input", replayInput)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to readings log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.MarkFlagRequired("input")
}
