package telemetry

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"droneops-mission/internal/geo"
)

// PlumeSensor simulates a gas sensor near a point source. The reading
// decays exponentially with ground distance from the source.
type PlumeSensor struct {
	Source   geo.Position // plume origin
	Field    string       // payload path, e.g. "co2.CO2"
	Baseline float64
	Peak     float64
	Scale    float64 // decay length in meters
	Noise    float64 // std dev

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPlumeSensor creates a sensor with a deterministic noise source.
func NewPlumeSensor(source geo.Position, field string, baseline, peak, scale, noise float64, seed int64) *PlumeSensor {
	if scale <= 0 {
		scale = 40
	}
	return &PlumeSensor{
		Source:   source,
		Field:    field,
		Baseline: baseline,
		Peak:     peak,
		Scale:    scale,
		Noise:    noise,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Value returns the noiseless reading at pos.
func (s *PlumeSensor) Value(pos geo.Position) float64 {
	d := geo.GroundDistance(pos, s.Source)
	return s.Baseline + s.Peak*math.Exp(-d/s.Scale)
}

// Read implements Sensor.
func (s *PlumeSensor) Read(ctx context.Context, pos geo.Position) (map[string]any, error) {
	v := s.Value(pos)
	if s.Noise > 0 {
		s.mu.Lock()
		v += s.rng.NormFloat64() * s.Noise
		s.mu.Unlock()
	}
	payload := make(map[string]any)
	SetField(payload, s.Field, v)
	return payload, nil
}
