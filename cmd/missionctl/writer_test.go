package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"droneops-mission/internal/config"
	"droneops-mission/internal/events"
	"droneops-mission/internal/metrics"
	"droneops-mission/internal/mission"
	"droneops-mission/internal/telemetry"
)

func TestNewEventWriterJSON(t *testing.T) {
	w, cleanup, err := newEventWriter(writerOptions{JSON: true})
	if err != nil {
		t.Fatalf("newEventWriter returned error: %v", err)
	}
	cleanup()
	if _, ok := w.(*events.JSONWriter); !ok {
		t.Fatalf("expected *events.JSONWriter, got %T", w)
	}
}

func TestNewEventWriterLogFileAndMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("collector: %v", err)
	}
	w, cleanup, err := newEventWriter(writerOptions{JSON: true, LogFile: path, Metrics: collector})
	if err != nil {
		t.Fatalf("newEventWriter returned error: %v", err)
	}
	defer cleanup()
	if _, ok := w.(*events.MultiWriter); !ok {
		t.Fatalf("expected *events.MultiWriter, got %T", w)
	}
	e := events.StepEvent{VehicleID: "alpha", Action: mission.ActionGo, Phase: events.PhaseEnd, Timestamp: time.Now()}
	if err := w.WriteStep(e); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected events file to be non-empty")
	}
}

func TestNewStoreWithoutGreptime(t *testing.T) {
	store, client, err := newStore(config.GreptimeConfig{})
	if err != nil {
		t.Fatalf("newStore returned error: %v", err)
	}
	if client != nil {
		t.Fatalf("expected no client")
	}
	if _, ok := store.(*telemetry.MemoryStore); !ok {
		t.Fatalf("expected *telemetry.MemoryStore, got %T", store)
	}
	if ingester(client) != nil {
		t.Fatalf("expected nil ingester for nil client")
	}
}

func TestNewGreptimeClientBadEndpoint(t *testing.T) {
	for _, ep := range []string{"localhost", "localhost:grpc"} {
		if _, err := newGreptimeClient(config.GreptimeConfig{Endpoint: ep}); err == nil {
			t.Errorf("expected error for endpoint %q", ep)
		}
	}
}

func TestGenerateCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"generate", "--shape", "circle", "--radius", "2", "--altitude", "4", "--start", "1,2"})
	defer rootCmd.SetArgs(nil)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	plan, err := mission.Unmarshal(out.Bytes())
	if err != nil {
		t.Fatalf("decode plan: %v\n%s", err, out.String())
	}
	home, ok := plan.Points[mission.HomePoint]
	if !ok || home.N != 1 || home.E != 2 || home.D != 4 {
		t.Fatalf("unexpected home point: %+v", home)
	}
	if plan.Len() == 0 {
		t.Fatalf("expected steps")
	}
}
