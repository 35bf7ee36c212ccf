package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"droneops-mission/internal/mission"
)

// Router delivers commands to navigators running in the same process.
type Router struct {
	mu      sync.RWMutex
	inboxes map[string]chan<- Event
	now     func() time.Time
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{inboxes: make(map[string]chan<- Event), now: time.Now}
}

// Register binds a vehicle ID to its navigator inbox.
func (r *Router) Register(vehicleID string, inbox chan<- Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inboxes[vehicleID] = inbox
}

func (r *Router) inbox(vehicleID string) (chan<- Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.inboxes[vehicleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVehicle, vehicleID)
	}
	return ch, nil
}

// Launch implements Sender.
func (r *Router) Launch(ctx context.Context, vehicleID string) error {
	return r.Send(vehicleID, Event{Kind: KindLaunch, StartTime: r.now()})
}

// SendMission implements Sender. The plan is validated before delivery.
func (r *Router) SendMission(ctx context.Context, vehicleID string, plan *mission.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	return r.Send(vehicleID, Event{Kind: KindMission, Plan: plan})
}

// Send delivers an arbitrary event.
func (r *Router) Send(vehicleID string, ev Event) error {
	ch, err := r.inbox(vehicleID)
	if err != nil {
		return err
	}
	return Deliver(ch, ev)
}
