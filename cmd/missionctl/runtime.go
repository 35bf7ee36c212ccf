package main

import (
	"context"
	"errors"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"golang.org/x/sync/errgroup"

	"droneops-mission/internal/autopilot"
	"droneops-mission/internal/config"
	"droneops-mission/internal/events"
	"droneops-mission/internal/geo"
	"droneops-mission/internal/logging"
	"droneops-mission/internal/navigator"
	"droneops-mission/internal/telemetry"
)

// vehicleRuntime is one simulated vehicle: autopilot, navigator and
// telemetry recorder.
type vehicleRuntime struct {
	cfg      *config.VehicleConfig
	ap       *autopilot.Sim
	nav      *navigator.Navigator
	recorder *telemetry.Recorder
}

func newVehicleRuntime(vc *config.VehicleConfig, missionID string, store telemetry.Appender, ev *events.Channels) *vehicleRuntime {
	ap := autopilot.NewSim(autopilot.SimConfig{
		Home:        vc.Home,
		Speedup:     vc.Speedup,
		RTLAltitude: vc.RecoveryAlt,
	})
	rec := &telemetry.Recorder{
		VehicleID: vc.VehicleID,
		MissionID: missionID,
		Source:    ap,
		Store:     store,
		Interval:  vc.RecordInterval,
	}
	if s := vc.Sensor; s != nil {
		source := geo.Offset(vc.Home, s.SourceN, s.SourceE, 0)
		rec.Sensor = telemetry.NewPlumeSensor(source, s.Field, s.Baseline, s.Peak, s.Scale, s.Noise, s.Seed)
	}
	return &vehicleRuntime{
		cfg:      vc,
		ap:       ap,
		nav:      navigator.New(vc.Config, ap, ev),
		recorder: rec,
	}
}

// start runs the vehicle's loops on g until ctx is cancelled.
func (v *vehicleRuntime) start(ctx context.Context, g *errgroup.Group) {
	log := logging.FromContext(ctx).With("vehicle_id", v.cfg.VehicleID)
	ctx = logging.NewContext(ctx, log)
	g.Go(func() error { return ignoreCanceled(v.ap.Run(ctx)) })
	g.Go(func() error { return v.nav.Run(ctx) })
	g.Go(func() error {
		v.recorder.Run(ctx)
		return nil
	})
	log.Info("vehicle started", "home", v.cfg.Home, "speedup", v.cfg.Speedup, "sensor", v.cfg.Sensor != nil)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ingester avoids storing a typed nil client in the events.Ingester
// interface.
func ingester(c *greptime.Client) events.Ingester {
	if c == nil {
		return nil
	}
	return c
}
