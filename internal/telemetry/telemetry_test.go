package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"droneops-mission/internal/geo"
)

func TestReadingField(t *testing.T) {
	r := Reading{Payload: map[string]any{"co2": map[string]any{"CO2": 612.5}, "rssi": -40}}
	if v, ok := r.Field("co2.CO2"); !ok || v != 612.5 {
		t.Fatalf("co2.CO2 = %v, %v", v, ok)
	}
	if v, ok := r.Field("rssi"); !ok || v != -40 {
		t.Fatalf("rssi = %v, %v", v, ok)
	}
	for _, path := range []string{"co2", "co2.CO", "humidity", "rssi.x"} {
		if _, ok := r.Field(path); ok {
			t.Errorf("expected %q to be missing", path)
		}
	}
	if _, ok := (Reading{}).Field("co2.CO2"); ok {
		t.Errorf("expected nil payload to miss")
	}
}

func TestSetField(t *testing.T) {
	p := map[string]any{}
	SetField(p, "co2.CO2", 1.5)
	SetField(p, "co2.temp", 20)
	SetField(p, "flat", 3)
	want := map[string]any{"co2": map[string]any{"CO2": 1.5, "temp": 20.0}, "flat": 3.0}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Append(ctx,
		Reading{VehicleID: "alpha", MissionID: "m1"},
		Reading{VehicleID: "bravo", MissionID: "m1"},
		Reading{ID: 10, VehicleID: "alpha", MissionID: "m2"},
	)
	_ = s.Append(ctx, Reading{VehicleID: "alpha", MissionID: "m1"})
	_ = s.Append(ctx, Reading{ID: 5, VehicleID: "alpha", MissionID: "m1"})

	got, _ := s.Query(ctx, "alpha", "m1", 0)
	var ids []int64
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]int64{1, 5, 11}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	got, _ = s.Query(ctx, "alpha", "", 5)
	if len(got) != 2 || got[0].ID != 10 || got[1].ID != 11 {
		t.Fatalf("unexpected readings since 5: %+v", got)
	}
	if s.Len() != 5 {
		t.Fatalf("expected 5 readings, got %d", s.Len())
	}
}

type fakeSource struct {
	pos geo.Position
	ok  bool
	err error
}

func (f *fakeSource) Position(ctx context.Context) (geo.Position, bool, error) {
	return f.pos, f.ok, f.err
}

func TestRecorderSample(t *testing.T) {
	ctx := context.Background()
	home := geo.Position{Lat: 32.99, Lon: -117.12}
	src := &fakeSource{pos: geo.Offset(home, 5, 5, 3), ok: true}
	store := NewMemoryStore()
	fixed := time.Unix(1700000000, 0)
	rec := &Recorder{
		VehicleID: "alpha",
		MissionID: "m1",
		Source:    src,
		Sensor:    NewPlumeSensor(home, "co2.CO2", 400, 600, 40, 0, 1),
		Store:     store,
		now:       func() time.Time { return fixed },
	}
	for i := 0; i < 3; i++ {
		if err := rec.Sample(ctx); err != nil {
			t.Fatalf("sample: %v", err)
		}
	}
	src.ok = false
	if err := rec.Sample(ctx); err != nil {
		t.Fatalf("sample without fix: %v", err)
	}

	got, _ := store.Query(ctx, "alpha", "m1", 0)
	if len(got) != 4 {
		t.Fatalf("expected 4 readings, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].ID <= got[i-1].ID {
			t.Fatalf("ids not strictly increasing: %d then %d", got[i-1].ID, got[i].ID)
		}
	}
	if got[0].ID != fixed.UnixMicro() {
		t.Fatalf("expected first id from timestamp, got %d", got[0].ID)
	}
	v, ok := got[0].Field("co2.CO2")
	if !ok || v < 850 || v > 1000 {
		t.Fatalf("expected near-peak reading, got %v (%v)", v, ok)
	}
	if got[3].HasFix() || got[3].Payload != nil {
		t.Fatalf("expected empty reading without fix, got %+v", got[3])
	}
}

func TestRecorderSourceError(t *testing.T) {
	rec := &Recorder{Source: &fakeSource{err: errors.New("link lost")}, Store: NewMemoryStore()}
	if err := rec.Sample(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPlumeSensorDecays(t *testing.T) {
	src := geo.Position{Lat: 32.99, Lon: -117.12}
	s := NewPlumeSensor(src, "co2.CO2", 400, 600, 40, 0, 1)
	near := s.Value(src)
	far := s.Value(geo.Offset(src, 200, 0, 0))
	if math.Abs(near-1000) > 1e-9 {
		t.Fatalf("expected baseline+peak at source, got %v", near)
	}
	if far >= near || far < 400 {
		t.Fatalf("expected decay toward baseline, got %v", far)
	}
	p, _ := s.Read(context.Background(), src)
	if v, ok := (Reading{Payload: p}).Field("co2.CO2"); !ok || v != near {
		t.Fatalf("payload value %v, %v", v, ok)
	}
}

func TestReplayLog(t *testing.T) {
	rows := []Reading{
		{ID: 1, VehicleID: "alpha", Lat: 1, Timestamp: time.Unix(0, 0)},
		{ID: 2, VehicleID: "alpha", Lat: 2, Timestamp: time.Unix(1, 0)},
	}
	var buf bytes.Buffer
	if err := WriteLog(&buf, rows); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := NewMemoryStore()
	n, err := ReplayLog(context.Background(), &buf, store, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
	got, _ := store.Query(context.Background(), "alpha", "", 0)
	if len(got) != 2 || got[1].Lat != 2 {
		t.Fatalf("unexpected replayed rows: %+v", got)
	}
}

func TestReplayLogBadInput(t *testing.T) {
	_, err := ReplayLog(context.Background(), strings.NewReader("{not json"), NewMemoryStore(), 0)
	if err == nil {
		t.Fatalf("expected decode error")
	}
}

type mockIngester struct {
	tables []*table.Table
}

func (m *mockIngester) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	m.tables = append(m.tables, tables...)
	return &gpb.GreptimeResponse{}, nil
}

func TestGreptimeStoreAppend(t *testing.T) {
	m := &mockIngester{}
	s := NewGreptimeStore(m, GreptimeOptions{})
	r := Reading{
		ID:        42,
		VehicleID: "alpha",
		MissionID: "m1",
		Lat:       32.9,
		Lon:       -117.1,
		Alt:       3,
		Payload:   map[string]any{"co2": map[string]any{"CO2": 500.0}},
		Timestamp: time.Unix(10, 0),
	}
	if err := s.Append(context.Background(), r); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows := m.tables[0].GetRows()
	vals := rows.Rows[0].Values
	if got := vals[0].GetStringValue(); got != "alpha" {
		t.Fatalf("vehicle_id = %q", got)
	}
	if got := vals[2].GetI64Value(); got != 42 {
		t.Fatalf("record_id = %d", got)
	}
	if got := vals[6].GetStringValue(); got != `{"co2":{"CO2":500}}` {
		t.Fatalf("payload = %s", got)
	}
	if err := s.Append(context.Background()); err != nil || len(m.tables) != 1 {
		t.Fatalf("expected empty append to be a no-op")
	}
}

func TestGreptimeStoreQuery(t *testing.T) {
	var gotSQL, gotDB string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sql" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		gotSQL = form.Get("sql")
		gotDB = r.URL.Query().Get("db")
		resp := map[string]any{
			"code": 0,
			"output": []any{map[string]any{
				"records": map[string]any{
					"schema": map[string]any{"column_schemas": []any{
						map[string]any{"name": "record_id", "data_type": "Int64"},
						map[string]any{"name": "vehicle_id", "data_type": "String"},
						map[string]any{"name": "mission_id", "data_type": "String"},
						map[string]any{"name": "lat", "data_type": "Float64"},
						map[string]any{"name": "lon", "data_type": "Float64"},
						map[string]any{"name": "alt", "data_type": "Float64"},
						map[string]any{"name": "payload", "data_type": "String"},
						map[string]any{"name": "ts", "data_type": "TimestampMillisecond"},
					}},
					"rows": []any{
						[]any{1700000000000001, "alpha", "m1", 32.5, -117.5, 3.0, `{"co2":{"CO2":650}}`, 1700000000000},
					},
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	s := NewGreptimeStore(&mockIngester{}, GreptimeOptions{HTTPEndpoint: srv.URL + "/", Database: "drones"})
	got, err := s.Query(context.Background(), "alpha", "o'brien", 7)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if gotDB != "drones" {
		t.Fatalf("db = %q", gotDB)
	}
	for _, frag := range []string{"FROM mission_readings", "vehicle_id = 'alpha'", "mission_id = 'o''brien'", "record_id > 7", "ORDER BY record_id ASC"} {
		if !strings.Contains(gotSQL, frag) {
			t.Errorf("sql %q missing %q", gotSQL, frag)
		}
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(got))
	}
	r := got[0]
	if r.ID != 1700000000000001 || r.Lat != 32.5 || r.Lon != -117.5 || r.MissionID != "m1" {
		t.Fatalf("unexpected reading: %+v", r)
	}
	if v, ok := r.Field("co2.CO2"); !ok || v != 650 {
		t.Fatalf("payload value %v, %v", v, ok)
	}
	if !r.Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("timestamp = %v", r.Timestamp)
	}
}

func TestGreptimeStoreQueryErrors(t *testing.T) {
	code := codeTableNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusBadRequest
		if code == codeTableNotFound {
			status = http.StatusNotFound
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "error": "boom"})
	}))
	defer srv.Close()

	s := NewGreptimeStore(&mockIngester{}, GreptimeOptions{HTTPEndpoint: srv.URL})
	got, err := s.Query(context.Background(), "alpha", "", 0)
	if err != nil || got != nil {
		t.Fatalf("missing table should read as empty, got %v, %v", got, err)
	}
	code = 3000
	if _, err := s.Query(context.Background(), "alpha", "", 0); err == nil {
		t.Fatalf("expected error")
	}
}
