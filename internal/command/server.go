package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"droneops-mission/internal/logging"
	"droneops-mission/internal/mission"
)

// LaunchRequest is the optional body of POST /launch.
type LaunchRequest struct {
	StartTime float64 `json:"start_time"` // unix seconds
}

// Server exposes a vehicle's command inbox over HTTP.
type Server struct {
	vehicleID string
	inbox     chan<- Event
	mux       *http.ServeMux
	now       func() time.Time
}

// NewServer creates a Server for one vehicle.
func NewServer(vehicleID string, inbox chan<- Event) *Server {
	s := &Server{vehicleID: vehicleID, inbox: inbox, mux: http.NewServeMux(), now: time.Now}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /launch", s.handleLaunch)
	s.mux.HandleFunc("POST /mission", s.handleMission)
	s.mux.HandleFunc("GET /land", s.handleLand)
	s.mux.HandleFunc("GET /RTL_and_land", s.handleRTL)
	s.mux.HandleFunc("GET /ack", s.handleAck)
}

// Handle mounts an additional handler, e.g. metrics or status.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	log := logging.FromContext(ctx)
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("command server listening", "addr", addr, "vehicle_id", s.vehicleID)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) accept(w http.ResponseWriter, ev Event) {
	if err := Deliver(s.inbox, ev); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"vehicle_id": s.vehicleID, "accepted": string(ev.Kind)})
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	ev := Event{Kind: KindLaunch, StartTime: s.now()}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<10))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > 0 {
		var req LaunchRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, fmt.Sprintf("launch: %v", err), http.StatusBadRequest)
			return
		}
		if req.StartTime > 0 {
			sec, frac := math.Modf(req.StartTime)
			ev.StartTime = time.Unix(int64(sec), int64(frac*1e9))
		}
	}
	s.accept(w, ev)
}

func (s *Server) handleMission(w http.ResponseWriter, r *http.Request) {
	plan, err := mission.Decode(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.accept(w, Event{Kind: KindMission, Plan: plan})
}

func (s *Server) handleLand(w http.ResponseWriter, r *http.Request) {
	s.accept(w, Event{Kind: KindLand})
}

func (s *Server) handleRTL(w http.ResponseWriter, r *http.Request) {
	s.accept(w, Event{Kind: KindReturnToLaunch})
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"vehicle_id": s.vehicleID, "status": "ok"})
}
