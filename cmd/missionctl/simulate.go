package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"droneops-mission/internal/admin"
	"droneops-mission/internal/command"
	"droneops-mission/internal/coordinator"
	"droneops-mission/internal/events"
	"droneops-mission/internal/logging"
	"droneops-mission/internal/metrics"
	"droneops-mission/internal/monitor"
)

var (
	simTUI        bool
	simJSON       bool
	simEventsFile string
	simDuration   time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run every configured vehicle and the coordinator in one process",
	Long:  "simulate runs all vehicles from the configuration on simulated autopilots, routes commands in process and starts the investigation coordinator when configured.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel, cfg, err := setup(cmd, simTUI)
		if err != nil {
			return err
		}
		defer cancel()
		if simDuration > 0 {
			var stop context.CancelFunc
			ctx, stop = context.WithTimeout(ctx, simDuration)
			defer stop()
		}
		log := logging.FromContext(ctx)

		store, client, err := newStore(cfg.Greptime)
		if err != nil {
			return err
		}
		collector, err := metrics.NewCollector(nil)
		if err != nil {
			return err
		}

		var mon *monitor.Monitor
		if simTUI {
			ids := make([]string, 0, len(cfg.Vehicles))
			for _, v := range cfg.Vehicles {
				ids = append(ids, v.VehicleID)
			}
			mon = monitor.New(ids)
			defer mon.Close()
		}
		w, cleanup, err := newEventWriter(writerOptions{
			JSON:     simJSON,
			LogFile:  simEventsFile,
			Greptime: ingester(client),
			Metrics:  collector,
			Monitor:  mon,
		})
		if err != nil {
			return err
		}
		defer cleanup()

		ev := events.NewChannels(256)
		router := command.NewRouter()
		runtimes := make([]*vehicleRuntime, 0, len(cfg.Vehicles))
		vehicles := make([]admin.Vehicle, 0, len(cfg.Vehicles))
		for i := range cfg.Vehicles {
			rt := newVehicleRuntime(&cfg.Vehicles[i], cfg.MissionID, store, ev)
			router.Register(rt.cfg.VehicleID, rt.nav.Inbox())
			runtimes = append(runtimes, rt)
			vehicles = append(vehicles, rt.nav)
		}
		if mon != nil {
			mon.SetCommander(func(id string, kind command.Kind) {
				e := command.Event{Kind: kind}
				if kind == command.KindLaunch {
					e.StartTime = time.Now()
				}
				if err := router.Send(id, e); err != nil {
					log.Warn("operator command rejected", "vehicle_id", id, "kind", kind, "err", err)
				}
			})
		}

		var coord *coordinator.Coordinator
		var inv admin.Investigation
		if cc := cfg.Coordinator; cc != nil {
			coord = coordinator.New(cc.Config, store, router, ev, collector)
			inv = coord
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			events.Pump(gctx, ev, w)
			return nil
		})
		for _, rt := range runtimes {
			rt.start(gctx, g)
		}
		if coord != nil {
			g.Go(func() error { return coord.Run(gctx) })
		}
		if cfg.MetricsAddr != "" {
			srv := admin.NewServer(cfg.MissionID, vehicles, inv, collector.Handler())
			g.Go(func() error { return srv.Start(gctx, cfg.MetricsAddr) })
		}
		err = g.Wait()
		log.Info("simulation stopped")
		return err
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simTUI, "tui", false, "Show the terminal monitor instead of printing events")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "Print events as JSON instead of colorized lines")
	simulateCmd.Flags().StringVar(&simEventsFile, "events-file", "", "Append events to a JSONL file")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
}
