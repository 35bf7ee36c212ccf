package navigator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"droneops-mission/internal/autopilot"
	"droneops-mission/internal/command"
	"droneops-mission/internal/events"
	"droneops-mission/internal/geo"
	"droneops-mission/internal/logging"
	"droneops-mission/internal/mission"
)

// abortError stops a plan without counting as a fault.
type abortError struct {
	reason string
	mode   string
}

func (e *abortError) Error() string {
	return fmt.Sprintf("plan aborted: %s (mode %s)", e.reason, e.mode)
}

type resolved struct {
	home   geo.Position
	points map[string]geo.Position
}

// resolve converts plan offsets to absolute positions around the current
// home location.
func (n *Navigator) resolve(ctx context.Context, plan *mission.Plan) (resolved, error) {
	home, err := n.ap.Home(ctx)
	if err != nil {
		return resolved{}, fmt.Errorf("home: %w", err)
	}
	r := resolved{home: home, points: make(map[string]geo.Position, len(plan.Points))}
	for name, pt := range plan.Points {
		r.points[name] = geo.Offset(home, pt.N, pt.E, pt.D)
	}
	return r, nil
}

func (n *Navigator) execute(ctx context.Context, q queuedPlan) {
	log := logging.FromContext(ctx).With("plan_id", q.id)
	ctx = logging.NewContext(ctx, log)
	n.setState(StateExecuting)
	defer n.setState(StateIdle)

	log.Info("plan started", "steps", len(q.plan.Steps), "goto_targets", q.plan.Len())
	step := -1
	err := func() error {
		r, err := n.resolve(ctx, q.plan)
		if err != nil {
			return err
		}
		for i, s := range q.plan.Steps {
			step = i
			if err := n.checkAbort(ctx); err != nil {
				return err
			}
			n.emitStep(q.id, i, s.Action, events.PhaseStart)
			if err := n.runStep(ctx, r, s); err != nil {
				return err
			}
			n.emitStep(q.id, i, s.Action, events.PhaseEnd)
		}
		return nil
	}()

	var ab *abortError
	switch {
	case err == nil:
		n.mu.Lock()
		n.completed++
		n.mu.Unlock()
		log.Info("plan completed")
	case errors.As(err, &ab):
		n.abort(ctx, q.id, step, ab)
	case ctx.Err() != nil:
		log.Warn("plan interrupted", "step", step, "err", err)
	default:
		n.fault(ctx, q.id, step, err)
	}
}

func (n *Navigator) runStep(ctx context.Context, r resolved, s mission.Step) error {
	log := logging.FromContext(ctx)
	switch s.Action {
	case mission.ActionGo:
		log.Info("moving", "point", s.Points[0])
		return n.goTo(ctx, r.points[s.Points[0]], n.cfg.GoSpeed)
	case mission.ActionPatrol:
		for lap := 0; lap < s.Repeat; lap++ {
			log.Debug("patrolling", "lap", lap+1, "of", s.Repeat)
			for _, name := range s.Points {
				if err := n.checkAbort(ctx); err != nil {
					return err
				}
				if err := n.goTo(ctx, r.points[name], n.cfg.PatrolSpeed); err != nil {
					return err
				}
			}
		}
		return nil
	case mission.ActionReturnToLaunch:
		if err := n.ap.ReturnToLaunch(ctx); err != nil {
			return fmt.Errorf("return to launch: %w", err)
		}
		return n.waitArrival(ctx, r.home, true)
	case mission.ActionLand:
		if err := n.ap.Land(ctx); err != nil {
			return fmt.Errorf("land: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", mission.ErrInvalidAction, s.Action)
	}
}

// checkAbort handles pending commands and reports an abortError when the
// plan must not continue.
func (n *Navigator) checkAbort(ctx context.Context) error {
	n.drainInbox(ctx)
	mode, err := n.ap.Mode(ctx)
	if err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	n.mu.Lock()
	preempt := n.preempt
	n.mu.Unlock()
	switch preempt {
	case command.KindLand:
		return &abortError{reason: ReasonOperatorLand, mode: mode}
	case command.KindReturnToLaunch:
		return &abortError{reason: ReasonOperatorRTL, mode: mode}
	}
	if mode != autopilot.ModeGuided {
		return &abortError{reason: ReasonModeChange, mode: mode}
	}
	return nil
}

func (n *Navigator) goTo(ctx context.Context, target geo.Position, speed float64) error {
	if err := n.ap.Goto(ctx, target, speed); err != nil {
		return fmt.Errorf("goto %s: %w", target, err)
	}
	return n.waitArrival(ctx, target, false)
}

// waitArrival polls until the vehicle has been within tolerance of target
// for ArrivalDebounce consecutive polls. groundOnly skips the altitude check.
func (n *Navigator) waitArrival(ctx context.Context, target geo.Position, groundOnly bool) error {
	ticker := time.NewTicker(n.cfg.ArrivalPoll)
	defer ticker.Stop()
	deadline := n.now().Add(n.cfg.ArrivalTimeout)

	good := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := n.checkAbort(ctx); err != nil {
			return err
		}
		pos, ok, err := n.ap.Position(ctx)
		if err != nil {
			return fmt.Errorf("position: %w", err)
		}
		if ok && geo.GroundDistance(pos, target) < n.cfg.GroundTolerance &&
			(groundOnly || math.Abs(pos.Alt-target.Alt) < n.cfg.AltTolerance) {
			good++
		} else {
			good = 0
		}
		if good >= n.cfg.ArrivalDebounce {
			return nil
		}
		if n.now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrArrivalTimeout, target)
		}
	}
}

// returnAndLand flies to RecoveryAlt above home and lands. The landing is
// attempted even when the return leg fails.
func (n *Navigator) returnAndLand(ctx context.Context) error {
	log := logging.FromContext(ctx)
	var legErr error
	home, err := n.ap.Home(ctx)
	if err != nil {
		legErr = fmt.Errorf("home: %w", err)
	} else {
		log.Info("returning to home", "altitude", n.cfg.RecoveryAlt)
		legErr = n.goTo(ctx, geo.Offset(home, 0, 0, n.cfg.RecoveryAlt), n.cfg.GoSpeed)
		var ab *abortError
		if errors.As(legErr, &ab) {
			legErr = nil
		}
	}
	log.Info("landing")
	if err := n.ap.Land(ctx); err != nil {
		return errors.Join(legErr, fmt.Errorf("land: %w", err))
	}
	return legErr
}

func (n *Navigator) abort(ctx context.Context, planID string, step int, ab *abortError) {
	n.setState(StateAborted)
	dropped := n.clearQueue()
	logging.FromContext(ctx).Warn("plan aborted",
		"step", step, "reason", ab.reason, "mode", ab.mode, "dropped_plans", dropped)
	if !n.events.Abort(events.AbortEvent{
		VehicleID: n.cfg.VehicleID,
		PlanID:    planID,
		Step:      step,
		Reason:    ab.reason,
		Mode:      ab.mode,
		Dropped:   dropped,
		Timestamp: n.now(),
	}) {
		logging.FromContext(ctx).Debug("abort event dropped")
	}
}

func (n *Navigator) fault(ctx context.Context, planID string, step int, cause error) {
	log := logging.FromContext(ctx)
	dropped := n.clearQueue()
	log.Error("step failed, returning to launch", "step", step, "err", cause, "dropped_plans", dropped)
	rerr := n.returnAndLand(ctx)
	if rerr != nil {
		log.Error("recovery failed", "err", rerr)
	}
	if !n.events.Fault(events.FaultEvent{
		VehicleID: n.cfg.VehicleID,
		PlanID:    planID,
		Step:      step,
		Error:     cause.Error(),
		Recovered: rerr == nil,
		Timestamp: n.now(),
	}) {
		log.Debug("fault event dropped")
	}
}

func (n *Navigator) emitStep(planID string, step int, action mission.Action, phase events.Phase) {
	now := n.now()
	n.events.Step(events.StepEvent{
		VehicleID:   n.cfg.VehicleID,
		PlanID:      planID,
		Step:        step,
		Action:      action,
		Phase:       phase,
		MissionTime: n.missionTime(now),
		Timestamp:   now,
	})
}
