// Package command carries launch, mission and recovery commands to
// vehicle navigators, in process or over HTTP.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"droneops-mission/internal/mission"
)

// Kind identifies an inbound navigator command.
type Kind string

const (
	KindLaunch         Kind = "launch"
	KindMission        Kind = "mission"
	KindLand           Kind = "land"
	KindReturnToLaunch Kind = "return_to_launch"
)

// Event is delivered to a navigator inbox. Plan is set for KindMission;
// StartTime is set for KindLaunch when the sender supplied one.
type Event struct {
	Kind      Kind
	Plan      *mission.Plan
	StartTime time.Time
}

// Sender delivers commands to vehicles addressed by ID.
type Sender interface {
	Launch(ctx context.Context, vehicleID string) error
	SendMission(ctx context.Context, vehicleID string, plan *mission.Plan) error
}

var (
	ErrUnknownVehicle = errors.New("unknown vehicle")
	ErrInboxFull      = errors.New("vehicle inbox full")
)

// Deliver queues ev on inbox without blocking.
func Deliver(inbox chan<- Event, ev Event) error {
	select {
	case inbox <- ev:
		return nil
	default:
		return fmt.Errorf("%s: %w", ev.Kind, ErrInboxFull)
	}
}
