package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"droneops-mission/internal/command"
	"droneops-mission/internal/events"
	"droneops-mission/internal/logging"
	"droneops-mission/internal/metrics"
)

var (
	vehicleID         string
	vehicleJSON       bool
	vehicleEventsFile string
)

var vehicleCmd = &cobra.Command{
	Use:   "vehicle",
	Short: "Run one simulated vehicle with its navigator and command server",
	Long:  "vehicle starts a simulated autopilot, the navigator that executes mission plans on it, a telemetry recorder and the HTTP command server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, cfg, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer cancel()
		log := logging.FromContext(ctx)

		vc, ok := cfg.Vehicle(vehicleID)
		if !ok {
			return fmt.Errorf("vehicle %q not configured", vehicleID)
		}
		if vc.Listen == "" {
			return fmt.Errorf("vehicle %q has no listen address", vehicleID)
		}

		store, client, err := newStore(cfg.Greptime)
		if err != nil {
			return err
		}
		if client == nil {
			log.Warn("no GreptimeDB endpoint configured, readings stay in memory")
		}
		collector, err := metrics.NewCollector(nil)
		if err != nil {
			return err
		}
		w, cleanup, err := newEventWriter(writerOptions{
			JSON:     vehicleJSON,
			LogFile:  vehicleEventsFile,
			Greptime: ingester(client),
			Metrics:  collector,
		})
		if err != nil {
			return err
		}
		defer cleanup()

		ev := events.NewChannels(64)
		rt := newVehicleRuntime(vc, cfg.MissionID, store, ev)
		srv := command.NewServer(vc.VehicleID, rt.nav.Inbox())
		srv.Handle("GET /metrics", collector.Handler())

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			events.Pump(gctx, ev, w)
			return nil
		})
		rt.start(gctx, g)
		g.Go(func() error { return srv.ListenAndServe(gctx, vc.Listen) })
		return g.Wait()
	},
}

func init() {
	vehicleCmd.Flags().StringVar(&vehicleID, "id", "", "Vehicle ID from the configuration")
	vehicleCmd.Flags().BoolVar(&vehicleJSON, "json", false, "Print events as JSON instead of colorized lines")
	vehicleCmd.Flags().StringVar(&vehicleEventsFile, "events-file", "", "Append events to a JSONL file")
	vehicleCmd.MarkFlagRequired("id")
}
