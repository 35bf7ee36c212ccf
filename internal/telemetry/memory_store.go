package telemetry

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps readings in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	readings []Reading
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores readings. Readings without an ID get the next sequence
// number; explicit IDs advance the sequence.
func (s *MemoryStore) Append(ctx context.Context, readings ...Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range readings {
		if r.ID == 0 {
			s.seq++
			r.ID = s.seq
		} else if r.ID > s.seq {
			s.seq = r.ID
		}
		s.readings = append(s.readings, r)
	}
	return nil
}

// Query implements Querier.
func (s *MemoryStore) Query(ctx context.Context, vehicleID, missionID string, sinceID int64) ([]Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reading
	for _, r := range s.readings {
		if r.ID <= sinceID || r.VehicleID != vehicleID {
			continue
		}
		if missionID != "" && r.MissionID != missionID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len returns the number of stored readings.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}
