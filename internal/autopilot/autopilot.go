// Package autopilot defines the vehicle control surface used by the
// navigator and provides a simulated implementation.
package autopilot

import (
	"context"
	"errors"

	"droneops-mission/internal/geo"
)

// Flight modes reported by Mode.
const (
	ModeGuided    = "GUIDED"
	ModeLand      = "LAND"
	ModeLoiter    = "LOITER"
	ModeStabilize = "STABILIZE"
)

var (
	ErrNotArmed  = errors.New("vehicle not armed")
	ErrNotGuided = errors.New("vehicle not in guided mode")
	ErrNoHome    = errors.New("home location unknown")
)

// Autopilot commands a single vehicle. Goto and ReturnToLaunch only issue
// the command; callers poll Position to observe arrival. Alt values are
// relative to home.
type Autopilot interface {
	ArmAndTakeoff(ctx context.Context, alt float64) error
	Goto(ctx context.Context, target geo.Position, speed float64) error
	Mode(ctx context.Context) (string, error)
	Home(ctx context.Context) (geo.Position, error)
	Position(ctx context.Context) (geo.Position, bool, error)
	ReturnToLaunch(ctx context.Context) error
	Land(ctx context.Context) error
}

// PositionSource reports the current vehicle position. ok is false while
// the position is unknown.
type PositionSource interface {
	Position(ctx context.Context) (pos geo.Position, ok bool, err error)
}
