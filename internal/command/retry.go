package command

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"droneops-mission/internal/mission"
)

// RetryPolicy bounds delivery retries.
type RetryPolicy struct {
	MaxAttempts uint          `yaml:"max_attempts"`
	Initial     time.Duration `yaml:"initial_interval"`
	Max         time.Duration `yaml:"max_interval"`
}

// DefaultRetryPolicy is 5 attempts starting at 500ms, capped at 10s.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Initial: 500 * time.Millisecond, Max: 10 * time.Second}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.Initial <= 0 {
		p.Initial = DefaultRetryPolicy.Initial
	}
	if p.Max <= 0 {
		p.Max = DefaultRetryPolicy.Max
	}
	return p
}

// DeliveryError reports a command that could not be delivered.
type DeliveryError struct {
	Op        string
	VehicleID string
	Attempts  int
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s to %s failed after %d attempt(s): %v", e.Op, e.VehicleID, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Notify is called before each retry with the failed attempt number.
type Notify func(attempt int, err error, wait time.Duration)

// Retry runs fn with exponential backoff until it succeeds, returns a
// permanent error, or the policy is exhausted. It returns the number of
// attempts made.
func Retry(ctx context.Context, p RetryPolicy, notify Notify, fn func() error) (int, error) {
	p = p.withDefaults()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.MaxInterval = p.Max

	attempts := 0
	op := func() (struct{}, error) {
		attempts++
		return struct{}{}, fn()
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if notify != nil {
				notify(attempts, err, wait)
			}
		}),
	)
	return attempts, err
}

// RetryingSender wraps a Sender with Retry.
type RetryingSender struct {
	next   Sender
	policy RetryPolicy
	notify Notify
}

// NewRetryingSender wraps next. notify may be nil.
func NewRetryingSender(next Sender, p RetryPolicy, notify Notify) *RetryingSender {
	return &RetryingSender{next: next, policy: p, notify: notify}
}

func (r *RetryingSender) do(ctx context.Context, op, vehicleID string, fn func() error) error {
	n, err := Retry(ctx, r.policy, r.notify, fn)
	if err != nil {
		return &DeliveryError{Op: op, VehicleID: vehicleID, Attempts: n, Err: err}
	}
	return nil
}

// Launch implements Sender.
func (r *RetryingSender) Launch(ctx context.Context, vehicleID string) error {
	return r.do(ctx, "launch", vehicleID, func() error { return r.next.Launch(ctx, vehicleID) })
}

// SendMission implements Sender.
func (r *RetryingSender) SendMission(ctx context.Context, vehicleID string, plan *mission.Plan) error {
	return r.do(ctx, "mission", vehicleID, func() error { return r.next.SendMission(ctx, vehicleID, plan) })
}
