// Package telemetry records vehicle position and sensor readings and serves
// them back to the coordinator.
package telemetry

import (
	"context"
	"strings"
	"time"
)

// Reading is one stored sample. ID is assigned at record time and is the
// ordering key for queries.
type Reading struct {
	ID        int64          `json:"id"`
	VehicleID string         `json:"vehicle_id"`
	MissionID string         `json:"mission_id"`
	Lat       float64        `json:"lat"`
	Lon       float64        `json:"lon"`
	Alt       float64        `json:"alt"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// HasFix reports whether the reading carries a position.
func (r Reading) HasFix() bool {
	return r.Lat != 0 || r.Lon != 0
}

// Field looks up a numeric payload value by dot-separated path, e.g.
// "co2.CO2".
func (r Reading) Field(path string) (float64, bool) {
	var cur any = r.Payload
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, false
		}
		if cur, ok = m[key]; !ok {
			return 0, false
		}
	}
	switch v := cur.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// SetField stores v at the dot-separated path, creating nested maps.
func SetField(payload map[string]any, path string, v float64) {
	keys := strings.Split(path, ".")
	m := payload
	for _, key := range keys[:len(keys)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[key] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = v
}

// Appender stores readings.
type Appender interface {
	Append(ctx context.Context, readings ...Reading) error
}

// Querier returns readings for a vehicle and mission with ID > sinceID in
// ascending ID order. An empty missionID matches every mission.
type Querier interface {
	Query(ctx context.Context, vehicleID, missionID string, sinceID int64) ([]Reading, error)
}

// Store is a readable and writable telemetry store.
type Store interface {
	Appender
	Querier
}
