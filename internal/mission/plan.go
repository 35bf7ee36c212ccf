// Package mission defines mission plans: named points plus an ordered
// list of actions over them.
package mission

import (
	"errors"
	"fmt"

	"droneops-mission/internal/geometry"
)

// Action is the verb of a plan step.
type Action string

const (
	ActionGo             Action = "go"
	ActionPatrol         Action = "patrol"
	ActionReturnToLaunch Action = "return_to_launch"
	ActionLand           Action = "land"
)

// legacyRTL is the older spelling of ActionReturnToLaunch.
const legacyRTL = "RTL"

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionGo, ActionPatrol, ActionReturnToLaunch, ActionLand:
		return true
	}
	return false
}

// Point is a named NED offset from the vehicle home.
type Point = geometry.Offset

// Step is one action over zero or more named points.
type Step struct {
	Action Action   `json:"action" yaml:"action"`
	Points []string `json:"points" yaml:"points"`
	Repeat int      `json:"repeat" yaml:"repeat"`
}

// Plan is a complete mission: the point map and the steps that visit it.
type Plan struct {
	Points map[string]Point `json:"points" yaml:"points"`
	Steps  []Step           `json:"plan" yaml:"plan"`
}

var (
	ErrEmptyPlan     = errors.New("plan has no steps")
	ErrUnknownPoint  = errors.New("unknown point")
	ErrEmptyStep     = errors.New("step has no points")
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidRepeat = errors.New("repeat must be non-negative")
)

// ValidationError identifies the step that failed validation.
type ValidationError struct {
	Step int
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks that every step is well formed and that all referenced
// points exist.
func (p *Plan) Validate() error {
	if p == nil || len(p.Steps) == 0 {
		return ErrEmptyPlan
	}
	for i, s := range p.Steps {
		if !s.Action.Valid() {
			return &ValidationError{Step: i, Err: fmt.Errorf("%w: %q", ErrInvalidAction, s.Action)}
		}
		if s.Repeat < 0 {
			return &ValidationError{Step: i, Err: fmt.Errorf("%w: %d", ErrInvalidRepeat, s.Repeat)}
		}
		if len(s.Points) == 0 && (s.Action == ActionGo || s.Action == ActionPatrol) {
			return &ValidationError{Step: i, Err: ErrEmptyStep}
		}
		for _, name := range s.Points {
			if _, ok := p.Points[name]; !ok {
				return &ValidationError{Step: i, Err: fmt.Errorf("%w: %q", ErrUnknownPoint, name)}
			}
		}
	}
	return nil
}

// Len returns the number of goto targets the plan will visit.
func (p *Plan) Len() int {
	n := 0
	for _, s := range p.Steps {
		switch s.Action {
		case ActionGo:
			n++
		case ActionPatrol:
			n += len(s.Points) * s.Repeat
		}
	}
	return n
}
