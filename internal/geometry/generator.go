// Package geometry synthesizes survey paths as NED offsets.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnsupportedShape        = errors.New("unsupported shape")
	ErrFilledCircleUnsupported = errors.New("filled circle is not supported")
	ErrInvalidParameter        = errors.New("invalid parameter")
)

// Offset is a displacement in meters from a reference origin. D carries the
// altitude above the origin.
type Offset struct {
	N float64 `json:"N" yaml:"N"`
	E float64 `json:"E" yaml:"E"`
	D float64 `json:"D" yaml:"D"`
}

// MaxSamples bounds the rows of a filled box sweep and the samples of a
// circle.
const MaxSamples = 10000

// Generate returns the ordered path for p. It is pure and deterministic.
func Generate(p Params) ([]Offset, error) {
	if p.Repetition < 0 {
		return nil, fmt.Errorf("%w: repetition %d", ErrInvalidParameter, p.Repetition)
	}
	if err := checkFinite(p); err != nil {
		return nil, err
	}
	var pts []Offset
	switch p.Shape {
	case ShapeBox:
		if p.Filled && math.Abs(p.Height)/StepSize > MaxSamples {
			return nil, fmt.Errorf("%w: height %v exceeds %d rows", ErrInvalidParameter, p.Height, MaxSamples)
		}
		pts = boxPath(p.Height, -p.Width, p.Filled)
		rotate(pts, p.Rotation)
	case ShapeCircle:
		if p.Filled {
			return nil, ErrFilledCircleUnsupported
		}
		if p.Radius <= 0 || 2*math.Pi*p.Radius/StepSize > MaxSamples {
			return nil, fmt.Errorf("%w: radius %v", ErrInvalidParameter, p.Radius)
		}
		pts = circlePath(p.Radius)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedShape, p.Shape)
	}
	for i := range pts {
		pts[i].N += p.StartN
		pts[i].E += p.StartE
		pts[i].D = p.Altitude
	}
	return pts, nil
}

func checkFinite(p Params) error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"height", p.Height},
		{"width", p.Width},
		{"rotation", p.Rotation},
		{"radius", p.Radius},
		{"altitude", p.Altitude},
		{"start north", p.StartN},
		{"start east", p.StartE},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
			return fmt.Errorf("%w: %s %v", ErrInvalidParameter, v.name, v.val)
		}
	}
	return nil
}

// boxPath extends north to nMax and west to wMax (negative east).
func boxPath(nMax, wMax float64, filled bool) []Offset {
	if !filled {
		return []Offset{{0, 0, 0}, {0, wMax, 0}, {nMax, wMax, 0}, {nMax, 0, 0}}
	}
	stride := math.Copysign(StepSize, nMax)
	var rows []float64
	for n := 0.0; math.Abs(n) < math.Abs(nMax); n += stride {
		rows = append(rows, n)
	}
	rows = append(rows, nMax)

	pts := make([]Offset, 0, 2*len(rows))
	for i, n := range rows {
		if i%2 == 0 {
			pts = append(pts, Offset{N: n, E: 0}, Offset{N: n, E: wMax})
		} else {
			pts = append(pts, Offset{N: n, E: wMax}, Offset{N: n, E: 0})
		}
	}
	return pts
}

// rotate turns points about the origin, north toward west on a north-up map.
func rotate(pts []Offset, degrees float64) {
	if degrees == 0 {
		return
	}
	sin, cos := math.Sincos(degrees * math.Pi / 180)
	for i, p := range pts {
		pts[i].N = p.N*cos + p.E*sin
		pts[i].E = -p.N*sin + p.E*cos
	}
}

// circlePath samples the perimeter starting at the seed (0, r).
func circlePath(r float64) []Offset {
	count := int(math.Floor(2 * math.Pi * r / StepSize))
	if count < 1 {
		count = 1
	}
	inc := 2 * math.Pi / float64(count)
	pts := make([]Offset, count)
	for i := range pts {
		sin, cos := math.Sincos(float64(i) * inc)
		pts[i] = Offset{N: r * sin, E: r * cos}
	}
	return pts
}
