// Package coordinator watches a primary vehicle's sensor stream and sends a
// secondary vehicle to investigate readings above a threshold.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"droneops-mission/internal/command"
	"droneops-mission/internal/events"
	"droneops-mission/internal/geo"
	"droneops-mission/internal/logging"
	"droneops-mission/internal/mission"
	"droneops-mission/internal/telemetry"
)

// AOI is an area of interest waiting for investigation.
type AOI struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Value    float64 `json:"value"`
	SourceID int64   `json:"source_id"`
	Attempts int     `json:"attempts,omitempty"`
	Err      string  `json:"error,omitempty"`
}

// Metrics receives coordinator gauges and counters. *metrics.Collector
// satisfies it.
type Metrics interface {
	ObserveDetected(n int)
	SetPending(n int)
	SetWatermark(id int64)
	ObserveRetry()
}

type nopMetrics struct{}

func (nopMetrics) ObserveDetected(int) {}
func (nopMetrics) SetPending(int)      {}
func (nopMetrics) SetWatermark(int64)  {}
func (nopMetrics) ObserveRetry()       {}

// DefaultThreshold is the detection threshold used when a config file does
// not set one.
const DefaultThreshold = 500.0

// Config holds coordinator settings. Threshold is used as given, zero
// included.
type Config struct {
	PrimaryID       string              `yaml:"primary"`
	SecondaryID     string              `yaml:"secondary"`
	MissionID       string              `yaml:"mission_id"`
	Field           string              `yaml:"field"`            // "co2.CO2"
	Threshold       float64             `yaml:"threshold"`
	PollInterval    time.Duration       `yaml:"poll_interval"`    // 1s
	SettleDelay     time.Duration       `yaml:"settle_delay"`     // 20s
	InspectRadius   float64             `yaml:"inspect_radius"`   // 1 m
	InspectAltitude float64             `yaml:"inspect_altitude"` // 5 m
	PositionTries   int                 `yaml:"position_tries"`   // 3
	Retry           command.RetryPolicy `yaml:"retry"`
	Survey          *mission.Plan       `yaml:"-"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Field == "" {
		c.Field = "co2.CO2"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 20 * time.Second
	}
	if c.InspectRadius <= 0 {
		c.InspectRadius = 1
	}
	if c.InspectAltitude <= 0 {
		c.InspectAltitude = 5
	}
	if c.PositionTries <= 0 {
		c.PositionTries = 3
	}
}

// Coordinator owns the watermark and the pending AOI queue for one
// primary/secondary pair.
type Coordinator struct {
	cfg     Config
	store   telemetry.Querier
	sender  command.Sender
	events  *events.Channels
	metrics Metrics

	mu        sync.Mutex
	watermark int64
	pending   []AOI
	failed    []AOI
	queued    map[coord]float64

	secondarySince int64
	secondaryPos   geo.Position
	secondaryFix   bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Coordinator. ev and m may be nil.
func New(cfg Config, store telemetry.Querier, sender command.Sender, ev *events.Channels, m Metrics) *Coordinator {
	cfg.ApplyDefaults()
	if m == nil {
		m = nopMetrics{}
	}
	return &Coordinator{
		cfg:     cfg,
		store:   store,
		sender:  sender,
		events:  ev,
		metrics: m,
		queued:  make(map[coord]float64),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Watermark returns the highest source ID already queued.
func (c *Coordinator) Watermark() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watermark
}

// Pending returns a copy of the pending queue, highest value first.
func (c *Coordinator) Pending() []AOI {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]AOI(nil), c.pending...)
}

// Failed returns AOIs that could not be dispatched.
func (c *Coordinator) Failed() []AOI {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]AOI(nil), c.failed...)
}

// Run sends the survey plan if configured, then polls and dispatches until
// ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	log := logging.FromContext(ctx).With("primary", c.cfg.PrimaryID, "secondary", c.cfg.SecondaryID)
	ctx = logging.NewContext(ctx, log)
	log.Info("coordinator started", "field", c.cfg.Field, "threshold", c.cfg.Threshold)

	if c.cfg.Survey != nil {
		if err := c.startSurvey(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("coordinator stopped", "watermark", c.Watermark(), "pending", len(c.Pending()))
			return nil
		case <-ticker.C:
		}
		n, err := c.Poll(ctx)
		if err != nil {
			log.Error("poll failed", "err", err)
			continue
		}
		if n > 0 {
			log.Info("areas of interest queued", "new", n, "watermark", c.Watermark())
		}
		for ctx.Err() == nil {
			ok, requeued := c.DispatchNext(ctx)
			if !ok || requeued {
				break
			}
		}
	}
}

func (c *Coordinator) startSurvey(ctx context.Context) error {
	log := logging.FromContext(ctx)
	if _, err := c.retry(ctx, func() error { return c.sender.Launch(ctx, c.cfg.PrimaryID) }); err != nil {
		return fmt.Errorf("launch %s: %w", c.cfg.PrimaryID, err)
	}
	if _, err := c.retry(ctx, func() error { return c.sender.SendMission(ctx, c.cfg.PrimaryID, c.cfg.Survey) }); err != nil {
		return fmt.Errorf("survey to %s: %w", c.cfg.PrimaryID, err)
	}
	log.Info("survey sent", "goto_targets", c.cfg.Survey.Len())
	return nil
}

// Poll queries readings above the watermark, cleans them and queues new
// areas of interest. It returns how many were queued.
func (c *Coordinator) Poll(ctx context.Context) (int, error) {
	readings, err := c.store.Query(ctx, c.cfg.PrimaryID, c.cfg.MissionID, c.Watermark())
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", c.cfg.PrimaryID, err)
	}
	return len(c.Detect(Clean(readings, c.cfg.Field))), nil
}

// Detect queues samples above the threshold that are newer than the
// watermark, then advances the watermark to the highest queued ID.
// A sample is skipped when its coordinates were already queued with an
// equal or higher value.
func (c *Coordinator) Detect(samples []Sample) []AOI {
	c.mu.Lock()
	defer c.mu.Unlock()

	var added []AOI
	high := c.watermark
	for _, s := range samples {
		if s.Value <= c.cfg.Threshold || s.ID <= c.watermark {
			continue
		}
		k := coord{s.Lat, s.Lon}
		if v, ok := c.queued[k]; ok && v >= s.Value {
			continue
		}
		c.queued[k] = s.Value
		a := AOI{Lat: s.Lat, Lon: s.Lon, Value: s.Value, SourceID: s.ID}
		added = append(added, a)
		c.pending = append(c.pending, a)
		if s.ID > high {
			high = s.ID
		}
	}
	c.watermark = high
	sortPending(c.pending)

	c.metrics.ObserveDetected(len(added))
	c.metrics.SetPending(len(c.pending))
	c.metrics.SetWatermark(c.watermark)
	return added
}

// sortPending orders by value descending. Equal values keep queue order.
func sortPending(p []AOI) {
	sort.SliceStable(p, func(i, j int) bool { return p[i].Value > p[j].Value })
}

func (c *Coordinator) pop() (AOI, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return AOI{}, false
	}
	a := c.pending[0]
	c.pending = c.pending[1:]
	c.metrics.SetPending(len(c.pending))
	return a, true
}

func (c *Coordinator) requeue(a AOI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, a)
	sortPending(c.pending)
	c.metrics.SetPending(len(c.pending))
}

func (c *Coordinator) fail(a AOI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = append(c.failed, a)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
