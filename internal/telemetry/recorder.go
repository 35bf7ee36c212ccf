package telemetry

import (
	"context"
	"fmt"
	"time"

	"droneops-mission/internal/autopilot"
	"droneops-mission/internal/geo"
	"droneops-mission/internal/logging"
)

// Sensor produces a payload for the given position.
type Sensor interface {
	Read(ctx context.Context, pos geo.Position) (map[string]any, error)
}

// Recorder samples a vehicle's position and sensor and appends the result
// to a store on a fixed interval.
type Recorder struct {
	VehicleID string
	MissionID string
	Source    autopilot.PositionSource
	Sensor    Sensor // optional
	Store     Appender
	Interval  time.Duration

	now    func() time.Time
	lastID int64
}

// Run samples until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	log := logging.FromContext(ctx).With("vehicle_id", r.VehicleID)
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	log.Info("starting telemetry recorder", "interval", interval, "mission_id", r.MissionID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.Sample(ctx); err != nil {
				log.Error("telemetry sample failed", "err", err)
			}
		case <-ctx.Done():
			log.Info("stopping telemetry recorder")
			return
		}
	}
}

// Sample records a single reading. Readings without a position fix are
// stored with zero coordinates.
func (r *Recorder) Sample(ctx context.Context) error {
	pos, ok, err := r.Source.Position(ctx)
	if err != nil {
		return fmt.Errorf("position: %w", err)
	}
	if !ok {
		pos = geo.Position{}
	}
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	ts := now().UTC()
	reading := Reading{
		ID:        r.nextID(ts),
		VehicleID: r.VehicleID,
		MissionID: r.MissionID,
		Lat:       pos.Lat,
		Lon:       pos.Lon,
		Alt:       pos.Alt,
		Timestamp: ts,
	}
	if r.Sensor != nil && ok {
		payload, err := r.Sensor.Read(ctx, pos)
		if err != nil {
			return fmt.Errorf("sensor: %w", err)
		}
		reading.Payload = payload
	}
	return r.Store.Append(ctx, reading)
}

// nextID returns a strictly increasing id derived from the sample time.
func (r *Recorder) nextID(ts time.Time) int64 {
	id := ts.UnixMicro()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return id
}
