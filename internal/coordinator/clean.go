package coordinator

import (
	"sort"

	"droneops-mission/internal/telemetry"
)

// Sample is a cleaned reading: a position fix with the watched value.
type Sample struct {
	ID    int64
	Lat   float64
	Lon   float64
	Value float64
}

type coord struct{ lat, lon float64 }

// Clean drops readings without the field or without a fix, keeps the
// highest value per identical (lat, lon) and returns the survivors sorted
// by ID ascending. Equal values at one coordinate keep the newer reading.
func Clean(readings []telemetry.Reading, field string) []Sample {
	best := make(map[coord]Sample)
	for _, r := range readings {
		if !r.HasFix() {
			continue
		}
		v, ok := r.Field(field)
		if !ok {
			continue
		}
		s := Sample{ID: r.ID, Lat: r.Lat, Lon: r.Lon, Value: v}
		k := coord{r.Lat, r.Lon}
		cur, seen := best[k]
		if !seen || s.Value > cur.Value || (s.Value == cur.Value && s.ID > cur.ID) {
			best[k] = s
		}
	}
	out := make([]Sample, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
