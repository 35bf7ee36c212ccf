package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"droneops-mission/internal/coordinator"
	"droneops-mission/internal/logging"
	"droneops-mission/internal/navigator"
)

// Vehicle is the navigator view shown on the status page.
type Vehicle interface {
	VehicleID() string
	State() navigator.State
	Pending() int
	Completed() int
}

// Investigation is the coordinator view shown on the status page.
type Investigation interface {
	Watermark() int64
	Pending() []coordinator.AOI
	Failed() []coordinator.AOI
}

type Server struct {
	MissionID     string
	Vehicles      []Vehicle
	Investigation Investigation
	Metrics       http.Handler

	tpl *template.Template
	mux *http.ServeMux
}

//go:embed templates/index.html
var content embed.FS

// NewServer builds the status server. inv and metrics may be nil.
func NewServer(missionID string, vehicles []Vehicle, inv Investigation, metrics http.Handler) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	s := &Server{MissionID: missionID, Vehicles: vehicles, Investigation: inv, Metrics: metrics, tpl: tpl}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/status", s.handleStatus)
	if s.Metrics != nil {
		s.mux.Handle("/metrics", s.Metrics)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logging.FromContext(ctx).Info("admin server listening", "addr", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type VehicleStatus struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Pending   int    `json:"pending_plans"`
	Completed int    `json:"completed_plans"`
}

type InvestigationStatus struct {
	Watermark int64             `json:"watermark"`
	Pending   []coordinator.AOI `json:"pending"`
	Failed    []coordinator.AOI `json:"failed"`
}

type Status struct {
	MissionID     string               `json:"mission_id"`
	Vehicles      []VehicleStatus      `json:"vehicles"`
	Investigation *InvestigationStatus `json:"investigation,omitempty"`
}

// Snapshot collects the current status.
func (s *Server) Snapshot() Status {
	st := Status{MissionID: s.MissionID, Vehicles: make([]VehicleStatus, 0, len(s.Vehicles))}
	for _, v := range s.Vehicles {
		st.Vehicles = append(st.Vehicles, VehicleStatus{
			ID:        v.VehicleID(),
			State:     string(v.State()),
			Pending:   v.Pending(),
			Completed: v.Completed(),
		})
	}
	if s.Investigation != nil {
		st.Investigation = &InvestigationStatus{
			Watermark: s.Investigation.Watermark(),
			Pending:   s.Investigation.Pending(),
			Failed:    s.Investigation.Failed(),
		}
	}
	return st
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, s.Snapshot()); err != nil {
		logging.FromContext(r.Context()).Error("render status page", "err", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Snapshot())
}
