package mission

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"droneops-mission/internal/geometry"
)

func samplePlan() *Plan {
	return &Plan{
		Points: map[string]Point{
			"home": {N: 0, E: 0, D: 5},
			"p0":   {N: 1.5, E: -2, D: 5},
			"p1":   {N: 3, E: -2.25, D: 5},
		},
		Steps: []Step{
			{Action: ActionGo, Points: []string{"home"}},
			{Action: ActionPatrol, Points: []string{"p0", "p1"}, Repeat: 3},
			{Action: ActionReturnToLaunch},
			{Action: ActionLand, Points: []string{"home"}},
		},
	}
}

func TestPlanRoundTrip(t *testing.T) {
	in := samplePlan()
	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStepWithoutPointsEncodesList(t *testing.T) {
	b, err := Marshal(samplePlan())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "null") {
		t.Fatalf("points must never encode as null:\n%s", b)
	}
	if !strings.Contains(string(b), `"action": "return_to_launch",
      "points": [],`) {
		t.Fatalf("expected empty points list for return_to_launch:\n%s", b)
	}
}

func TestDecodeWireFormat(t *testing.T) {
	wire := `{
	  "points": {"home": {"N": 0, "E": 0, "D": 7}, "a": {"N": 4, "E": 1, "D": 7}},
	  "plan": [
	    {"action": "go", "points": ["a"], "repeat": 0},
	    {"action": "RTL", "points": [], "repeat": 0},
	    {"action": "land", "points": ["home"], "repeat": 0}
	  ]
	}`
	p, err := Decode(strings.NewReader(wire))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Steps[1].Action != ActionReturnToLaunch {
		t.Fatalf("expected legacy RTL to map to return_to_launch, got %q", p.Steps[1].Action)
	}
	if got := p.Points["a"]; got != (Point{N: 4, E: 1, D: 7}) {
		t.Fatalf("unexpected point: %+v", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(p *Plan)
		want error
		step int
	}{
		{"unknown point", func(p *Plan) { p.Steps[1].Points = []string{"p0", "nope"} }, ErrUnknownPoint, 1},
		{"empty go", func(p *Plan) { p.Steps[0].Points = nil }, ErrEmptyStep, 0},
		{"bad action", func(p *Plan) { p.Steps[2].Action = "hover" }, ErrInvalidAction, 2},
		{"negative repeat", func(p *Plan) { p.Steps[1].Repeat = -2 }, ErrInvalidRepeat, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := samplePlan()
			tc.mut(p)
			err := p.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Step != tc.step {
				t.Fatalf("expected validation error at step %d, got %v", tc.step, err)
			}
		})
	}
	if err := (&Plan{}).Validate(); !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
	if err := samplePlan().Validate(); err != nil {
		t.Fatalf("expected valid plan, got %v", err)
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	wire := `{"points": {"home": {"N":0,"E":0,"D":5}}, "plan": [{"action":"go","points":["missing"],"repeat":0}]}`
	if _, err := Unmarshal([]byte(wire)); !errors.Is(err, ErrUnknownPoint) {
		t.Fatalf("expected ErrUnknownPoint, got %v", err)
	}
	if _, err := Unmarshal([]byte(`{"points": 3}`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestAssembleBox(t *testing.T) {
	spec := geometry.Spec{
		Shape:      geometry.Ptr(geometry.ShapeBox),
		Height:     geometry.Ptr(8.0),
		Width:      geometry.Ptr(10.0),
		Filled:     geometry.Ptr(false),
		Altitude:   geometry.Ptr(5.0),
		Start:      &[2]float64{2, 3},
		Repetition: geometry.Ptr(2),
	}
	p, err := Assemble(context.Background(), spec)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	wantSteps := []Step{
		{Action: ActionGo, Points: []string{"home"}},
		{Action: ActionGo, Points: []string{"p0"}},
		{Action: ActionPatrol, Points: []string{"p0", "p1", "p2", "p3"}, Repeat: 2},
		{Action: ActionGo, Points: []string{"home"}},
		{Action: ActionLand, Points: []string{"home"}},
	}
	if diff := cmp.Diff(wantSteps, p.Steps); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}
	if home := p.Points[HomePoint]; home != (Point{N: 2, E: 3, D: 5}) {
		t.Fatalf("unexpected home: %+v", home)
	}
	if p2 := p.Points["p2"]; p2 != (Point{N: 10, E: -7, D: 5}) {
		t.Fatalf("unexpected p2: %+v", p2)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("assembled plan invalid: %v", err)
	}
	// go home, go p0, patrol 4 points twice, go home
	if got := p.Len(); got != 1+1+8+1 {
		t.Fatalf("expected 11 goto targets, got %d", got)
	}
}

func TestAssembleRejectsBadSpec(t *testing.T) {
	_, err := Assemble(context.Background(), geometry.Spec{Shape: geometry.Ptr(geometry.Shape("star"))})
	if !errors.Is(err, geometry.ErrUnsupportedShape) {
		t.Fatalf("expected ErrUnsupportedShape, got %v", err)
	}
}

func TestFromPointsEmptyPath(t *testing.T) {
	p := FromPoints(geometry.Params{Altitude: 4}, nil)
	want := []Step{
		{Action: ActionGo, Points: []string{"home"}},
		{Action: ActionLand, Points: []string{"home"}},
	}
	if diff := cmp.Diff(want, p.Steps); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}
}
