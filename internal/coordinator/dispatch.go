package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"droneops-mission/internal/command"
	"droneops-mission/internal/events"
	"droneops-mission/internal/geo"
	"droneops-mission/internal/geometry"
	"droneops-mission/internal/logging"
	"droneops-mission/internal/mission"
)

var ErrNoPosition = errors.New("secondary position unknown")

func (c *Coordinator) retry(ctx context.Context, fn func() error) (int, error) {
	log := logging.FromContext(ctx)
	return command.Retry(ctx, c.cfg.Retry, func(attempt int, err error, wait time.Duration) {
		c.metrics.ObserveRetry()
		log.Warn("command delivery failed, retrying", "attempt", attempt, "wait", wait, "err", err)
	}, fn)
}

// DispatchNext investigates the highest pending AOI. ok is false when the
// queue was empty; requeued is true when the AOI went back on the queue
// because the secondary position was not yet known.
func (c *Coordinator) DispatchNext(ctx context.Context) (ok, requeued bool) {
	a, ok := c.pop()
	if !ok {
		return false, false
	}
	log := logging.FromContext(ctx).With("source_id", a.SourceID, "value", a.Value)
	ev := events.DispatchEvent{
		PrimaryID:   c.cfg.PrimaryID,
		SecondaryID: c.cfg.SecondaryID,
		SourceID:    a.SourceID,
		Value:       a.Value,
		Lat:         a.Lat,
		Lon:         a.Lon,
	}

	attempts, err := c.dispatch(ctx, a, &ev)
	ev.Attempts = attempts
	ev.Timestamp = c.now()
	switch {
	case err == nil:
		log.Info("investigation dispatched", "north", ev.North, "east", ev.East, "attempts", attempts)
	case errors.Is(err, ErrNoPosition) && a.Attempts+1 < c.cfg.PositionTries:
		a.Attempts++
		log.Warn("secondary position unknown, requeueing", "tries", a.Attempts)
		c.requeue(a)
		return true, true
	case ctx.Err() != nil:
		log.Warn("dispatch interrupted", "err", err)
		c.requeue(a)
		return true, true
	default:
		a.Err = err.Error()
		ev.Error = err.Error()
		log.Error("investigation dispatch failed", "err", err)
		c.fail(a)
	}
	if !c.events.Dispatch(ev) {
		log.Debug("dispatch event dropped")
	}
	return true, false
}

// dispatch launches the secondary, waits for it to settle, and sends a
// circle inspection plan centered on the AOI relative to its position.
func (c *Coordinator) dispatch(ctx context.Context, a AOI, ev *events.DispatchEvent) (int, error) {
	id := c.cfg.SecondaryID
	n, err := c.retry(ctx, func() error { return c.sender.Launch(ctx, id) })
	if err != nil {
		return n, &command.DeliveryError{Op: "launch", VehicleID: id, Attempts: n, Err: err}
	}
	if err := c.sleep(ctx, c.cfg.SettleDelay); err != nil {
		return n, err
	}

	pos, err := c.secondaryPosition(ctx)
	if err != nil {
		return n, err
	}
	north, east := geo.RelativeOffset(pos, geo.Position{Lat: a.Lat, Lon: a.Lon})
	ev.North, ev.East = north, east

	plan, err := mission.Assemble(ctx, c.inspectSpec(north, east))
	if err != nil {
		return n, fmt.Errorf("assemble inspection: %w", err)
	}
	n, err = c.retry(ctx, func() error { return c.sender.SendMission(ctx, id, plan) })
	if err != nil {
		return n, &command.DeliveryError{Op: "mission", VehicleID: id, Attempts: n, Err: err}
	}
	return n, nil
}

func (c *Coordinator) inspectSpec(north, east float64) geometry.Spec {
	return geometry.Spec{
		Shape:      geometry.Ptr(geometry.ShapeCircle),
		Radius:     geometry.Ptr(c.cfg.InspectRadius),
		Altitude:   geometry.Ptr(c.cfg.InspectAltitude),
		Filled:     geometry.Ptr(false),
		Start:      &[2]float64{north, east},
		Repetition: geometry.Ptr(1),
	}
}

// secondaryPosition returns the fix of the newest secondary reading seen so
// far. Only readings after the last one seen are queried.
func (c *Coordinator) secondaryPosition(ctx context.Context) (geo.Position, error) {
	readings, err := c.store.Query(ctx, c.cfg.SecondaryID, c.cfg.MissionID, c.secondarySince)
	if err != nil {
		return geo.Position{}, fmt.Errorf("query %s: %w", c.cfg.SecondaryID, err)
	}
	for _, r := range readings {
		if r.ID > c.secondarySince {
			c.secondarySince = r.ID
		}
		if r.HasFix() {
			c.secondaryPos = geo.Position{Lat: r.Lat, Lon: r.Lon, Alt: r.Alt}
			c.secondaryFix = true
		}
	}
	if !c.secondaryFix {
		return geo.Position{}, ErrNoPosition
	}
	return c.secondaryPos, nil
}
