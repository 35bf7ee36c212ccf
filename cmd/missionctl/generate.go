package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"droneops-mission/internal/geometry"
	"droneops-mission/internal/mission"
)

var (
	genSpecFile string
	genOut      string
	genSpec     geometry.Spec
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a survey mission plan from a geometry",
	Long:  "generate builds a box or circle survey from a YAML geometry file and/or flags and prints the mission plan JSON.",
	Example: `  missionctl generate --shape box --height 20 --width 10 --rotation 30
  missionctl generate --spec survey.yaml --out plan.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandLogger(cmd)
		spec, err := loadSpec(genSpecFile)
		if err != nil {
			return err
		}
		mergeSpecFlags(cmd, &spec)

		plan, err := mission.Assemble(ctx, spec)
		if err != nil {
			return err
		}
		var out io.Writer = cmd.OutOrStdout()
		if genOut != "" {
			f, err := os.Create(genOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return mission.Encode(out, plan)
	},
}

func loadSpec(path string) (geometry.Spec, error) {
	var spec geometry.Spec
	if path == "" {
		return spec, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("cannot read geometry: %w", err)
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("cannot unmarshal geometry: %w", err)
	}
	return spec, nil
}

// mergeSpecFlags copies explicitly set flags over spec. Unset flags leave
// the field absent so defaults apply.
func mergeSpecFlags(cmd *cobra.Command, spec *geometry.Spec) {
	f := cmd.Flags()
	if f.Changed("shape") {
		spec.Shape = genSpec.Shape
	}
	if f.Changed("height") {
		spec.Height = genSpec.Height
	}
	if f.Changed("width") {
		spec.Width = genSpec.Width
	}
	if f.Changed("rotation") {
		spec.Rotation = genSpec.Rotation
	}
	if f.Changed("filled") {
		spec.Filled = genSpec.Filled
	}
	if f.Changed("radius") {
		spec.Radius = genSpec.Radius
	}
	if f.Changed("altitude") {
		spec.Altitude = genSpec.Altitude
	}
	if f.Changed("repetition") {
		spec.Repetition = genSpec.Repetition
	}
	if f.Changed("start") {
		start, _ := f.GetFloat64Slice("start")
		if len(start) == 2 {
			spec.Start = &[2]float64{start[0], start[1]}
		}
	}
}

func init() {
	genSpec = geometry.Spec{
		Shape:      new(geometry.Shape),
		Height:     new(float64),
		Width:      new(float64),
		Rotation:   new(float64),
		Filled:     new(bool),
		Radius:     new(float64),
		Altitude:   new(float64),
		Repetition: new(int),
	}
	f := generateCmd.Flags()
	f.StringVar(&genSpecFile, "spec", "", "YAML geometry file")
	f.StringVar(&genOut, "out", "", "Write the plan to a file instead of STDOUT")
	f.StringVar((*string)(genSpec.Shape), "shape", string(geometry.DefaultShape), "box or circle")
	f.Float64Var(genSpec.Height, "height", geometry.DefaultHeight, "Box extent along the heading (m)")
	f.Float64Var(genSpec.Width, "width", geometry.DefaultWidth, "Box extent across the heading (m)")
	f.Float64Var(genSpec.Rotation, "rotation", geometry.DefaultRotation, "Box heading in degrees from north toward west")
	f.BoolVar(genSpec.Filled, "filled", false, "Cover the box interior with a serpentine sweep")
	f.Float64Var(genSpec.Radius, "radius", geometry.DefaultRadius, "Circle radius (m)")
	f.Float64Var(genSpec.Altitude, "altitude", geometry.DefaultAltitude, "Survey altitude above home (m)")
	f.IntVar(genSpec.Repetition, "repetition", geometry.DefaultRepetition, "Patrol laps")
	f.Float64Slice("start", nil, "Start offset north,east from home (m)")
}
