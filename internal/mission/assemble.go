package mission

import (
	"context"
	"fmt"

	"droneops-mission/internal/geometry"
)

// HomePoint is the synthetic reference point every assembled plan starts
// and ends at.
const HomePoint = "home"

// Assemble generates the geometry for spec and wraps it in a plan that
// goes home, patrols the shape, returns home and lands.
func Assemble(ctx context.Context, spec geometry.Spec) (*Plan, error) {
	params, pts, err := geometry.Build(ctx, spec)
	if err != nil {
		return nil, err
	}
	return FromPoints(params, pts), nil
}

// FromPoints builds the plan for an already generated path.
func FromPoints(params geometry.Params, pts []geometry.Offset) *Plan {
	p := &Plan{
		Points: map[string]Point{
			HomePoint: {N: params.StartN, E: params.StartE, D: params.Altitude},
		},
		Steps: []Step{{Action: ActionGo, Points: []string{HomePoint}}},
	}
	if len(pts) > 0 {
		names := make([]string, len(pts))
		for i, pt := range pts {
			names[i] = fmt.Sprintf("p%d", i)
			p.Points[names[i]] = pt
		}
		p.Steps = append(p.Steps,
			Step{Action: ActionGo, Points: []string{names[0]}},
			Step{Action: ActionPatrol, Points: names, Repeat: params.Repetition},
			Step{Action: ActionGo, Points: []string{HomePoint}},
		)
	}
	p.Steps = append(p.Steps, Step{Action: ActionLand, Points: []string{HomePoint}})
	return p
}
