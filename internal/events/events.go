// Package events carries navigator and coordinator notifications over
// typed channels, one per category.
package events

import (
	"time"

	"droneops-mission/internal/mission"
)

// Phase marks whether a step is starting or has ended.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
)

// StepEvent is emitted around every executed plan step.
type StepEvent struct {
	VehicleID   string         `json:"vehicle_id"`
	PlanID      string         `json:"plan_id"`
	Step        int            `json:"step"`
	Action      mission.Action `json:"action"`
	Phase       Phase          `json:"phase"`
	MissionTime float64        `json:"mission_time,omitempty"` // seconds since launch
	Timestamp   time.Time      `json:"timestamp"`
}

// AbortEvent reports a plan truncated because the vehicle left guided mode
// or an operator preempted it.
type AbortEvent struct {
	VehicleID string    `json:"vehicle_id"`
	PlanID    string    `json:"plan_id"`
	Step      int       `json:"step"`
	Reason    string    `json:"reason"`
	Mode      string    `json:"mode,omitempty"`
	Dropped   int       `json:"dropped_plans"`
	Timestamp time.Time `json:"timestamp"`
}

// FaultEvent reports an autopilot failure that triggered return-and-land.
type FaultEvent struct {
	VehicleID string    `json:"vehicle_id"`
	PlanID    string    `json:"plan_id"`
	Step      int       `json:"step"`
	Error     string    `json:"error"`
	Recovered bool      `json:"recovered"`
	Timestamp time.Time `json:"timestamp"`
}

// DispatchEvent reports the outcome of sending an investigation plan.
type DispatchEvent struct {
	PrimaryID   string    `json:"primary_id"`
	SecondaryID string    `json:"secondary_id"`
	SourceID    int64     `json:"source_id"`
	Value       float64   `json:"value"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	North       float64   `json:"north"`
	East        float64   `json:"east"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// OK reports whether the plan reached the secondary vehicle.
func (e DispatchEvent) OK() bool { return e.Error == "" }

// Channels groups the per-category event channels. A nil *Channels or nil
// channel silently drops everything sent to it.
type Channels struct {
	Steps      chan StepEvent
	Aborts     chan AbortEvent
	Faults     chan FaultEvent
	Dispatches chan DispatchEvent
}

// NewChannels creates channels with the given buffer size each.
func NewChannels(buffer int) *Channels {
	return &Channels{
		Steps:      make(chan StepEvent, buffer),
		Aborts:     make(chan AbortEvent, buffer),
		Faults:     make(chan FaultEvent, buffer),
		Dispatches: make(chan DispatchEvent, buffer),
	}
}

// Step sends e without blocking and reports whether it was delivered.
func (c *Channels) Step(e StepEvent) bool {
	if c == nil {
		return false
	}
	return trySend(c.Steps, e)
}

// Abort sends e without blocking and reports whether it was delivered.
func (c *Channels) Abort(e AbortEvent) bool {
	if c == nil {
		return false
	}
	return trySend(c.Aborts, e)
}

// Fault sends e without blocking and reports whether it was delivered.
func (c *Channels) Fault(e FaultEvent) bool {
	if c == nil {
		return false
	}
	return trySend(c.Faults, e)
}

// Dispatch sends e without blocking and reports whether it was delivered.
func (c *Channels) Dispatch(e DispatchEvent) bool {
	if c == nil {
		return false
	}
	return trySend(c.Dispatches, e)
}

func trySend[T any](ch chan T, v T) bool {
	if ch == nil {
		return false
	}
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}
