package geometry

import (
	"context"
	"fmt"
	"strings"

	"droneops-mission/internal/logging"
)

// Shape names a survey geometry.
type Shape string

const (
	ShapeBox    Shape = "box"
	ShapeCircle Shape = "circle"
)

// Default values applied to absent Spec fields.
const (
	DefaultShape      = ShapeBox
	DefaultAltitude   = 5.0
	DefaultHeight     = 10.0
	DefaultWidth      = 10.0
	DefaultRotation   = 0.0
	DefaultRadius     = 3.0
	DefaultRepetition = 1
)

// StepSize is the spacing in meters between box rows and circle samples.
const StepSize = 2.0

// Spec is a geometry request as submitted by an operator or the coordinator.
// Nil fields are absent and receive defaults in Resolve.
type Spec struct {
	Shape      *Shape      `json:"shape,omitempty" yaml:"shape,omitempty"`
	Height     *float64    `json:"height,omitempty" yaml:"height,omitempty"`
	Width      *float64    `json:"width,omitempty" yaml:"width,omitempty"`
	Rotation   *float64    `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	Filled     *bool       `json:"filled,omitempty" yaml:"filled,omitempty"`
	Radius     *float64    `json:"radius,omitempty" yaml:"radius,omitempty"`
	Altitude   *float64    `json:"altitude,omitempty" yaml:"altitude,omitempty"`
	Start      *[2]float64 `json:"loc_start,omitempty" yaml:"loc_start,omitempty"`
	Repetition *int        `json:"repetition,omitempty" yaml:"repetition,omitempty"`
}

// Params is a Spec with every field resolved.
type Params struct {
	Shape      Shape
	Height     float64
	Width      float64
	Rotation   float64 // degrees, north toward west
	Filled     bool
	Radius     float64
	Altitude   float64
	StartN     float64
	StartE     float64
	Repetition int
}

// Ptr returns a pointer to v. Handy for building Specs in code.
func Ptr[T any](v T) *T { return &v }

// Resolve fills absent fields with defaults and reports which ones were
// defaulted. Shape-specific fields are only defaulted for their shape.
func (s Spec) Resolve() (Params, []string) {
	var defaulted []string
	p := Params{}

	if s.Shape != nil {
		p.Shape = Shape(strings.ToLower(string(*s.Shape)))
	} else {
		p.Shape = DefaultShape
		defaulted = append(defaulted, "shape")
	}
	if s.Altitude != nil {
		p.Altitude = *s.Altitude
	} else {
		p.Altitude = DefaultAltitude
		defaulted = append(defaulted, "altitude")
	}
	if s.Start != nil {
		p.StartN, p.StartE = s.Start[0], s.Start[1]
	} else {
		defaulted = append(defaulted, "loc_start")
	}
	if s.Repetition != nil {
		p.Repetition = *s.Repetition
	} else {
		p.Repetition = DefaultRepetition
		defaulted = append(defaulted, "repetition")
	}

	switch p.Shape {
	case ShapeBox:
		if s.Filled != nil {
			p.Filled = *s.Filled
		} else {
			p.Filled = true
			defaulted = append(defaulted, "filled")
		}
		if s.Height != nil {
			p.Height = *s.Height
		} else {
			p.Height = DefaultHeight
			defaulted = append(defaulted, "height")
		}
		if s.Width != nil {
			p.Width = *s.Width
		} else {
			p.Width = DefaultWidth
			defaulted = append(defaulted, "width")
		}
		if s.Rotation != nil {
			p.Rotation = *s.Rotation
		} else {
			p.Rotation = DefaultRotation
			defaulted = append(defaulted, "rotation")
		}
	case ShapeCircle:
		// circles are perimeter-only unless filled is requested explicitly
		if s.Filled != nil {
			p.Filled = *s.Filled
		}
		if s.Radius != nil {
			p.Radius = *s.Radius
		} else {
			p.Radius = DefaultRadius
			defaulted = append(defaulted, "radius")
		}
	}
	return p, defaulted
}

// Build resolves s, logs every applied default as a warning and generates
// the point list.
func Build(ctx context.Context, s Spec) (Params, []Offset, error) {
	p, defaulted := s.Resolve()
	log := logging.FromContext(ctx)
	for _, field := range defaulted {
		log.Warn("geometry field missing, using default", "field", field, "shape", p.Shape)
	}
	pts, err := Generate(p)
	if err != nil {
		return p, nil, fmt.Errorf("generate %s: %w", p.Shape, err)
	}
	return p, pts, nil
}
