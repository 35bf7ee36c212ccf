package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"droneops-mission/internal/admin"
	"droneops-mission/internal/command"
	"droneops-mission/internal/coordinator"
	"droneops-mission/internal/events"
	"droneops-mission/internal/logging"
	"droneops-mission/internal/metrics"
)

var (
	coordJSON       bool
	coordEventsFile string
)

var coordinateCmd = &cobra.Command{
	Use:   "coordinate",
	Short: "Run the investigation coordinator against remote vehicles",
	Long:  "coordinate watches the primary vehicle's readings in GreptimeDB and sends inspection plans to the secondary vehicle's command server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, cfg, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer cancel()
		log := logging.FromContext(ctx)

		cc := cfg.Coordinator
		if cc == nil {
			return errors.New("no coordinator section in configuration")
		}
		if !cfg.Greptime.Enabled() || cfg.Greptime.HTTP == "" {
			return errors.New("coordinate needs greptime.endpoint and greptime.http to read vehicle telemetry")
		}
		store, client, err := newStore(cfg.Greptime)
		if err != nil {
			return err
		}
		collector, err := metrics.NewCollector(nil)
		if err != nil {
			return err
		}
		w, cleanup, err := newEventWriter(writerOptions{
			JSON:     coordJSON,
			LogFile:  coordEventsFile,
			Greptime: ingester(client),
			Metrics:  collector,
		})
		if err != nil {
			return err
		}
		defer cleanup()

		sender := command.NewClient(cfg.Addrs(), &http.Client{Timeout: 10 * time.Second})
		for _, id := range []string{cc.PrimaryID, cc.SecondaryID} {
			if err := sender.Ack(ctx, id); err != nil {
				log.Warn("vehicle not reachable yet", "vehicle_id", id, "err", err)
			}
		}

		ev := events.NewChannels(64)
		coord := coordinator.New(cc.Config, store, sender, ev, collector)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			events.Pump(gctx, ev, w)
			return nil
		})
		g.Go(func() error { return coord.Run(gctx) })
		if cfg.MetricsAddr != "" {
			srv := admin.NewServer(cfg.MissionID, nil, coord, collector.Handler())
			g.Go(func() error { return srv.Start(gctx, cfg.MetricsAddr) })
		}
		return g.Wait()
	},
}

func init() {
	coordinateCmd.Flags().BoolVar(&coordJSON, "json", false, "Print events as JSON instead of colorized lines")
	coordinateCmd.Flags().StringVar(&coordEventsFile, "events-file", "", "Append events to a JSONL file")
}
