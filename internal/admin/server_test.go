package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"droneops-mission/internal/coordinator"
	"droneops-mission/internal/navigator"
)

type fakeVehicle struct {
	id        string
	state     navigator.State
	pending   int
	completed int
}

func (f fakeVehicle) VehicleID() string      { return f.id }
func (f fakeVehicle) State() navigator.State { return f.state }
func (f fakeVehicle) Pending() int           { return f.pending }
func (f fakeVehicle) Completed() int         { return f.completed }

type fakeInvestigation struct {
	watermark int64
	pending   []coordinator.AOI
	failed    []coordinator.AOI
}

func (f fakeInvestigation) Watermark() int64           { return f.watermark }
func (f fakeInvestigation) Pending() []coordinator.AOI { return f.pending }
func (f fakeInvestigation) Failed() []coordinator.AOI  { return f.failed }

func newTestServer(metrics http.Handler) *Server {
	vehicles := []Vehicle{
		fakeVehicle{id: "alpha", state: navigator.StateExecuting, pending: 1, completed: 2},
		fakeVehicle{id: "bravo", state: navigator.StateAborted},
	}
	inv := fakeInvestigation{
		watermark: 4,
		pending:   []coordinator.AOI{{SourceID: 4, Value: 700}},
		failed:    []coordinator.AOI{{SourceID: 2, Value: 600, Err: "inbox full"}},
	}
	return NewServer("courtyard", vehicles, inv, metrics)
}

func TestHandleStatus(t *testing.T) {
	server := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", resp.StatusCode)
	}
	var got Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Status{
		MissionID: "courtyard",
		Vehicles: []VehicleStatus{
			{ID: "alpha", State: "executing", Pending: 1, Completed: 2},
			{ID: "bravo", State: "aborted"},
		},
		Investigation: &InvestigationStatus{
			Watermark: 4,
			Pending:   []coordinator.AOI{{SourceID: 4, Value: 700}},
			Failed:    []coordinator.AOI{{SourceID: 2, Value: 600, Err: "inbox full"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleIndex(t *testing.T) {
	server := newTestServer(nil)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}
	body := w.Body.String()
	for _, s := range []string{"Mission courtyard", "alpha", "Watermark: 4", "failed: inbox full"} {
		if !strings.Contains(body, s) {
			t.Errorf("index missing %q", s)
		}
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %v", w.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("investigation_watermark 4\n"))
	})
	server := newTestServer(metrics)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "investigation_watermark 4") {
		t.Errorf("metrics not served: %q", w.Body.String())
	}
}

func TestStatusWithoutInvestigation(t *testing.T) {
	server := NewServer("m", nil, nil, nil)
	st := server.Snapshot()
	if st.Investigation != nil || len(st.Vehicles) != 0 {
		t.Errorf("unexpected snapshot: %+v", st)
	}
}
