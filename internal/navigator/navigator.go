// Package navigator executes mission plans against a single vehicle's
// autopilot. A Navigator owns its autopilot: it is the only caller.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"droneops-mission/internal/autopilot"
	"droneops-mission/internal/command"
	"droneops-mission/internal/events"
	"droneops-mission/internal/logging"
	"droneops-mission/internal/mission"
)

// State is the navigator's execution state.
type State string

const (
	StateIdle      State = "idle"
	StateExecuting State = "executing"
	StateAborted   State = "aborted"
)

// Abort reasons reported in events.AbortEvent.
const (
	ReasonModeChange   = "mode_change"
	ReasonOperatorLand = "operator_land"
	ReasonOperatorRTL  = "operator_return_to_launch"
)

const (
	defaultInboxSize    = 16
	defaultArrivalLimit = 5 * time.Minute
)

var ErrArrivalTimeout = errors.New("waypoint not reached in time")

// Config tunes a Navigator. Zero values take the defaults noted per field.
// RecoveryAlt is the hover height over home before landing after a fault.
type Config struct {
	VehicleID       string        `yaml:"id"`
	TakeoffAltitude float64       `yaml:"takeoff_altitude"`  // 5 m
	GoSpeed         float64       `yaml:"go_speed"`          // 0.7 m/s
	PatrolSpeed     float64       `yaml:"patrol_speed"`      // 0.5 m/s
	GroundTolerance float64       `yaml:"ground_tolerance"`  // 0.8 m
	AltTolerance    float64       `yaml:"alt_tolerance"`     // 1.0 m
	ArrivalDebounce int           `yaml:"arrival_debounce"`  // 5 polls
	ArrivalPoll     time.Duration `yaml:"arrival_poll"`      // 200ms
	ArrivalTimeout  time.Duration `yaml:"arrival_timeout"`   // 5m
	PollInterval    time.Duration `yaml:"poll_interval"`     // 10ms
	RecoveryAlt     float64       `yaml:"recovery_altitude"` // 7 m
	InboxSize       int           `yaml:"inbox_size"`        // 16
	LaunchPlan      *mission.Plan `yaml:"-"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.TakeoffAltitude <= 0 {
		c.TakeoffAltitude = 5
	}
	if c.GoSpeed <= 0 {
		c.GoSpeed = 0.7
	}
	if c.PatrolSpeed <= 0 {
		c.PatrolSpeed = 0.5
	}
	if c.GroundTolerance <= 0 {
		c.GroundTolerance = 0.8
	}
	if c.AltTolerance <= 0 {
		c.AltTolerance = 1.0
	}
	if c.ArrivalDebounce <= 0 {
		c.ArrivalDebounce = 5
	}
	if c.ArrivalPoll <= 0 {
		c.ArrivalPoll = 200 * time.Millisecond
	}
	if c.ArrivalTimeout <= 0 {
		c.ArrivalTimeout = defaultArrivalLimit
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	if c.RecoveryAlt <= 0 {
		c.RecoveryAlt = 7
	}
	if c.InboxSize <= 0 {
		c.InboxSize = defaultInboxSize
	}
}

type queuedPlan struct {
	id   string
	plan *mission.Plan
}

// Navigator drains an inbox of command events and executes queued plans
// one at a time.
type Navigator struct {
	cfg    Config
	ap     autopilot.Autopilot
	events *events.Channels
	inbox  chan command.Event

	mu        sync.Mutex
	state     State
	queue     []queuedPlan
	launchAt  time.Time
	preempt   command.Kind
	completed int

	now   func() time.Time
	newID func() string
}

// New creates a Navigator. ev may be nil to discard notifications.
func New(cfg Config, ap autopilot.Autopilot, ev *events.Channels) *Navigator {
	cfg.ApplyDefaults()
	return &Navigator{
		cfg:    cfg,
		ap:     ap,
		events: ev,
		inbox:  make(chan command.Event, cfg.InboxSize),
		state:  StateIdle,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Inbox is where command events for this vehicle are delivered.
func (n *Navigator) Inbox() chan<- command.Event { return n.inbox }

// VehicleID returns the configured vehicle ID.
func (n *Navigator) VehicleID() string { return n.cfg.VehicleID }

// State returns the current execution state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Pending returns the number of queued plans.
func (n *Navigator) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Completed returns the number of plans that ran to completion.
func (n *Navigator) Completed() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.completed
}

// Enqueue validates plan and appends it to the queue. It returns the plan ID.
func (n *Navigator) Enqueue(plan *mission.Plan) (string, error) {
	if plan == nil {
		return "", mission.ErrEmptyPlan
	}
	if err := plan.Validate(); err != nil {
		return "", err
	}
	id := n.newID()
	n.mu.Lock()
	n.queue = append(n.queue, queuedPlan{id: id, plan: plan})
	n.mu.Unlock()
	return id, nil
}

func (n *Navigator) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

func (n *Navigator) pop() (queuedPlan, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.queue) == 0 {
		return queuedPlan{}, false
	}
	q := n.queue[0]
	n.queue = n.queue[1:]
	return q, true
}

func (n *Navigator) clearQueue() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	dropped := len(n.queue)
	n.queue = nil
	return dropped
}

func (n *Navigator) takePreempt() command.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	k := n.preempt
	n.preempt = ""
	return k
}

// Run processes inbox events and executes queued plans until ctx is
// cancelled.
func (n *Navigator) Run(ctx context.Context) error {
	log := logging.FromContext(ctx).With("vehicle_id", n.cfg.VehicleID)
	ctx = logging.NewContext(ctx, log)
	log.Info("navigator started", "poll_interval", n.cfg.PollInterval)

	ticker := time.NewTicker(n.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("navigator stopped", "pending", n.Pending())
			return nil
		case ev := <-n.inbox:
			n.handle(ctx, ev)
			n.recoverIfPreempted(ctx)
		case <-ticker.C:
			q, ok := n.pop()
			if !ok {
				continue
			}
			n.execute(ctx, q)
			n.recoverIfPreempted(ctx)
			n.dropIfNotGuided(ctx)
		}
	}
}

// drainInbox handles queued events without blocking. It runs at step
// boundaries and during arrival waits so commands are not starved by a
// long plan.
func (n *Navigator) drainInbox(ctx context.Context) {
	for {
		select {
		case ev := <-n.inbox:
			n.handle(ctx, ev)
		default:
			return
		}
	}
}

func (n *Navigator) handle(ctx context.Context, ev command.Event) {
	log := logging.FromContext(ctx)
	switch ev.Kind {
	case command.KindLaunch:
		n.launch(ctx, ev)
	case command.KindMission:
		id, err := n.Enqueue(ev.Plan)
		if err != nil {
			log.Warn("mission rejected", "err", err)
			return
		}
		log.Info("mission queued", "plan_id", id, "goto_targets", ev.Plan.Len(), "pending", n.Pending())
	case command.KindLand, command.KindReturnToLaunch:
		n.mu.Lock()
		n.preempt = ev.Kind
		n.mu.Unlock()
		log.Info("operator command received", "kind", ev.Kind)
	default:
		log.Warn("unknown command ignored", "kind", ev.Kind)
	}
}

func (n *Navigator) launch(ctx context.Context, ev command.Event) {
	log := logging.FromContext(ctx)
	start := ev.StartTime
	if start.IsZero() {
		start = n.now()
	}
	n.mu.Lock()
	n.launchAt = start
	n.mu.Unlock()

	if err := n.ap.ArmAndTakeoff(ctx, n.cfg.TakeoffAltitude); err != nil {
		log.Error("takeoff failed", "err", err)
		n.events.Fault(events.FaultEvent{
			VehicleID: n.cfg.VehicleID,
			Error:     fmt.Sprintf("takeoff: %v", err),
			Timestamp: n.now(),
		})
		return
	}
	log.Info("vehicle ready for guidance", "altitude", n.cfg.TakeoffAltitude)
	if n.cfg.LaunchPlan == nil {
		return
	}
	if id, err := n.Enqueue(n.cfg.LaunchPlan); err != nil {
		log.Error("launch plan rejected", "err", err)
	} else {
		log.Info("launch plan queued", "plan_id", id)
	}
}

// recoverIfPreempted performs a pending operator land or return when no
// plan is running. Queued plans are discarded.
func (n *Navigator) recoverIfPreempted(ctx context.Context) {
	kind := n.takePreempt()
	if kind == "" {
		return
	}
	if dropped := n.clearQueue(); dropped > 0 {
		logging.FromContext(ctx).Warn("queued plans dropped", "kind", kind, "dropped", dropped)
	}
	switch kind {
	case command.KindLand:
		if err := n.ap.Land(ctx); err != nil {
			logging.FromContext(ctx).Error("land failed", "err", err)
		}
	case command.KindReturnToLaunch:
		if err := n.returnAndLand(ctx); err != nil {
			logging.FromContext(ctx).Error("return and land failed", "err", err)
		}
	}
}

// dropIfNotGuided discards queued plans once the vehicle has left guided
// mode, e.g. after landing.
func (n *Navigator) dropIfNotGuided(ctx context.Context) {
	mode, err := n.ap.Mode(ctx)
	if err != nil || mode == autopilot.ModeGuided {
		return
	}
	if dropped := n.clearQueue(); dropped > 0 {
		logging.FromContext(ctx).Warn("queued plans dropped", "mode", mode, "dropped", dropped)
	}
}

func (n *Navigator) missionTime(t time.Time) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.launchAt.IsZero() {
		return 0
	}
	return t.Sub(n.launchAt).Seconds()
}
