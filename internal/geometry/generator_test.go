package geometry

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const tol = 1e-9

var approx = cmpopts.EquateApprox(0, tol)

func TestUnfilledBoxCorners(t *testing.T) {
	spec := Spec{
		Shape:    Ptr(ShapeBox),
		Height:   Ptr(8.0),
		Width:    Ptr(10.0),
		Rotation: Ptr(0.0),
		Filled:   Ptr(false),
		Start:    &[2]float64{0, 0},
		Altitude: Ptr(5.0),
	}
	p, _ := spec.Resolve()
	got, err := Generate(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []Offset{{0, 0, 5}, {0, -10, 5}, {8, -10, 5}, {8, 0, 5}}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("corners mismatch (-want +got):\n%s", diff)
	}
}

func TestUnfilledBoxAlwaysFourPoints(t *testing.T) {
	for _, h := range []float64{1, 3, 8, 25, -6} {
		for _, rot := range []float64{0, 30, 90, 215} {
			p := Params{Shape: ShapeBox, Height: h, Width: 7, Rotation: rot, Altitude: 4, StartN: 3, StartE: -2}
			pts, err := Generate(p)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if len(pts) != 4 {
				t.Fatalf("h=%v rot=%v: expected 4 corners, got %d", h, rot, len(pts))
			}
			// opposite corners span the diagonal regardless of rotation
			diag := math.Hypot(pts[2].N-pts[0].N, pts[2].E-pts[0].E)
			if math.Abs(diag-math.Hypot(h, 7)) > 1e-6 {
				t.Errorf("diagonal %v, want %v", diag, math.Hypot(h, 7))
			}
			if pts[0].N != 3 || pts[0].E != -2 {
				t.Errorf("first corner should sit on the start offset, got %+v", pts[0])
			}
		}
	}
}

func TestFilledBoxSerpentine(t *testing.T) {
	p := Params{Shape: ShapeBox, Height: 5, Width: 4, Filled: true, Altitude: 2}
	got, err := Generate(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []Offset{
		{0, 0, 2}, {0, -4, 2},
		{2, -4, 2}, {2, 0, 2},
		{4, 0, 2}, {4, -4, 2},
		{5, -4, 2}, {5, 0, 2},
	}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("serpentine mismatch (-want +got):\n%s", diff)
	}
}

func TestFilledBoxSouthward(t *testing.T) {
	p := Params{Shape: ShapeBox, Height: -4, Width: 2, Filled: true}
	got, err := Generate(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []Offset{{0, 0, 0}, {0, -2, 0}, {-2, -2, 0}, {-2, 0, 0}, {-4, 0, 0}, {-4, -2, 0}}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestBoxRotationNorthTowardWest(t *testing.T) {
	p := Params{Shape: ShapeBox, Height: 8, Width: 10, Rotation: 90}
	got, err := Generate(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []Offset{{0, 0, 0}, {-10, 0, 0}, {-10, -8, 0}, {0, -8, 0}}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Fatalf("rotated corners mismatch (-want +got):\n%s", diff)
	}
}

func TestCircleScenario(t *testing.T) {
	spec := Spec{Shape: Ptr(ShapeCircle), Radius: Ptr(5.0), Altitude: Ptr(3.0), Start: &[2]float64{0, 0}}
	p, _ := spec.Resolve()
	pts, err := Generate(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(pts) != 15 {
		t.Fatalf("expected 15 points, got %d", len(pts))
	}
	if math.Abs(pts[0].N) > tol || math.Abs(pts[0].E-5) > tol {
		t.Errorf("expected seed (0,5), got %+v", pts[0])
	}
	for i, pt := range pts {
		if d := math.Hypot(pt.N, pt.E); math.Abs(d-5) > tol {
			t.Errorf("point %d at distance %v", i, d)
		}
		if pt.D != 3 {
			t.Errorf("point %d altitude %v", i, pt.D)
		}
	}
}

func TestCircleRadiusInvariant(t *testing.T) {
	for _, r := range []float64{0.1, 1, 2.5, 7, 40} {
		p := Params{Shape: ShapeCircle, Radius: r, StartN: -12, StartE: 4.5, Altitude: 5}
		pts, err := Generate(p)
		if err != nil {
			t.Fatalf("r=%v: %v", r, err)
		}
		if len(pts) < 1 {
			t.Fatalf("r=%v: expected at least one point", r)
		}
		for _, pt := range pts {
			if d := math.Hypot(pt.N+12, pt.E-4.5); math.Abs(d-r) > 1e-9*math.Max(1, r) {
				t.Errorf("r=%v: point off radius: %v", r, d)
			}
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	cases := []struct {
		name string
		p    Params
		want error
	}{
		{"unsupported shape", Params{Shape: "hexagon"}, ErrUnsupportedShape},
		{"filled circle", Params{Shape: ShapeCircle, Radius: 4, Filled: true}, ErrFilledCircleUnsupported},
		{"zero radius", Params{Shape: ShapeCircle, Radius: 0}, ErrInvalidParameter},
		{"negative radius", Params{Shape: ShapeCircle, Radius: -1}, ErrInvalidParameter},
		{"negative repetition", Params{Shape: ShapeBox, Height: 2, Width: 2, Repetition: -1}, ErrInvalidParameter},
		{"NaN height", Params{Shape: ShapeBox, Height: math.NaN(), Width: 10, Filled: true}, ErrInvalidParameter},
		{"infinite height", Params{Shape: ShapeBox, Height: math.Inf(1), Width: 10, Filled: true}, ErrInvalidParameter},
		{"huge height", Params{Shape: ShapeBox, Height: 1e300, Width: 10, Filled: true}, ErrInvalidParameter},
		{"infinite width", Params{Shape: ShapeBox, Height: 2, Width: math.Inf(-1)}, ErrInvalidParameter},
		{"NaN rotation", Params{Shape: ShapeBox, Height: 2, Width: 2, Rotation: math.NaN()}, ErrInvalidParameter},
		{"NaN altitude", Params{Shape: ShapeCircle, Radius: 2, Altitude: math.NaN()}, ErrInvalidParameter},
		{"infinite start", Params{Shape: ShapeCircle, Radius: 2, StartE: math.Inf(1)}, ErrInvalidParameter},
		{"NaN radius", Params{Shape: ShapeCircle, Radius: math.NaN()}, ErrInvalidParameter},
		{"huge radius", Params{Shape: ShapeCircle, Radius: 1e12}, ErrInvalidParameter},
		{"infinite radius", Params{Shape: ShapeCircle, Radius: math.Inf(1)}, ErrInvalidParameter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pts, err := Generate(tc.p)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if pts != nil {
				t.Fatalf("expected no points on error, got %d", len(pts))
			}
		})
	}
}

func TestResolveDefaults(t *testing.T) {
	p, defaulted := Spec{}.Resolve()
	want := Params{
		Shape:      ShapeBox,
		Height:     10,
		Width:      10,
		Filled:     true,
		Altitude:   5,
		Repetition: 1,
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	wantFields := []string{"shape", "altitude", "loc_start", "repetition", "filled", "height", "width", "rotation"}
	if diff := cmp.Diff(wantFields, defaulted); diff != "" {
		t.Fatalf("defaulted fields mismatch (-want +got):\n%s", diff)
	}

	c, _ := Spec{Shape: Ptr(ShapeCircle)}.Resolve()
	if c.Filled {
		t.Fatalf("circle without filled should resolve to perimeter")
	}
	if c.Radius != DefaultRadius {
		t.Fatalf("expected default radius, got %v", c.Radius)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	spec := Spec{Height: Ptr(6.0), Width: Ptr(3.0), Rotation: Ptr(33.0)}
	_, a, err := Build(context.Background(), spec)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, b, err := Build(context.Background(), spec)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("non-deterministic output:\n%s", diff)
	}
}
