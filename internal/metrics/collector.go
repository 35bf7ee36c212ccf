// Package metrics exposes mission orchestration counters to Prometheus.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"droneops-mission/internal/events"
)

// Collector bundles the navigator and coordinator metrics. It also
// implements events.Writer so it can sit behind a MultiWriter.
type Collector struct {
	gatherer prometheus.Gatherer

	Steps            *prometheus.CounterVec
	Aborts           *prometheus.CounterVec
	Faults           prometheus.Counter
	Dispatches       prometheus.Counter
	DispatchFailures prometheus.Counter
	DeliveryRetries  prometheus.Counter
	AOIsDetected     prometheus.Counter
	PendingAOIs      prometheus.Gauge
	Watermark        prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mission_steps_total",
		Help: "Completed plan steps, labeled by action.",
	}, []string{"action"}), "mission_steps_total")
	if err != nil {
		return nil, err
	}
	aborts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mission_aborts_total",
		Help: "Plans truncated by a mode change or operator command, labeled by reason.",
	}, []string{"reason"}), "mission_aborts_total")
	if err != nil {
		return nil, err
	}
	faults, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mission_faults_total",
		Help: "Autopilot failures that triggered return-and-land.",
	}), "mission_faults_total")
	if err != nil {
		return nil, err
	}
	dispatches, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "investigation_dispatches_total",
		Help: "Investigation plans delivered to the secondary vehicle.",
	}), "investigation_dispatches_total")
	if err != nil {
		return nil, err
	}
	failures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "investigation_dispatch_failures_total",
		Help: "Investigation plans abandoned after exhausting retries.",
	}), "investigation_dispatch_failures_total")
	if err != nil {
		return nil, err
	}
	retries, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "command_delivery_retries_total",
		Help: "Command deliveries retried after a transport error.",
	}), "command_delivery_retries_total")
	if err != nil {
		return nil, err
	}
	detected, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "investigation_aois_detected_total",
		Help: "Areas of interest queued by threshold detection.",
	}), "investigation_aois_detected_total")
	if err != nil {
		return nil, err
	}
	pending, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "investigation_pending_aois",
		Help: "Areas of interest waiting for dispatch.",
	}), "investigation_pending_aois")
	if err != nil {
		return nil, err
	}
	watermark, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "investigation_watermark",
		Help: "Highest reading id already converted into an area of interest.",
	}), "investigation_watermark")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		Steps:            steps,
		Aborts:           aborts,
		Faults:           faults,
		Dispatches:       dispatches,
		DispatchFailures: failures,
		DeliveryRetries:  retries,
		AOIsDetected:     detected,
		PendingAOIs:      pending,
		Watermark:        watermark,
	}, nil
}

// Handler exposes a /metrics handler for the collector's gatherer.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the gatherer the collector registered against.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveDetected counts newly queued areas of interest.
func (c *Collector) ObserveDetected(n int) {
	if c == nil || c.AOIsDetected == nil || n <= 0 {
		return
	}
	c.AOIsDetected.Add(float64(n))
}

// SetPending records the pending queue length.
func (c *Collector) SetPending(n int) {
	if c == nil || c.PendingAOIs == nil {
		return
	}
	c.PendingAOIs.Set(float64(n))
}

// SetWatermark records the coordinator watermark.
func (c *Collector) SetWatermark(id int64) {
	if c == nil || c.Watermark == nil {
		return
	}
	c.Watermark.Set(float64(id))
}

// ObserveRetry counts one retried delivery.
func (c *Collector) ObserveRetry() {
	if c == nil || c.DeliveryRetries == nil {
		return
	}
	c.DeliveryRetries.Inc()
}

// WriteStep counts steps when they end.
func (c *Collector) WriteStep(e events.StepEvent) error {
	if c == nil || c.Steps == nil || e.Phase != events.PhaseEnd {
		return nil
	}
	c.Steps.WithLabelValues(string(e.Action)).Inc()
	return nil
}

func (c *Collector) WriteAbort(e events.AbortEvent) error {
	if c == nil || c.Aborts == nil {
		return nil
	}
	c.Aborts.WithLabelValues(e.Reason).Inc()
	return nil
}

func (c *Collector) WriteFault(events.FaultEvent) error {
	if c == nil || c.Faults == nil {
		return nil
	}
	c.Faults.Inc()
	return nil
}

func (c *Collector) WriteDispatch(e events.DispatchEvent) error {
	if c == nil {
		return nil
	}
	if e.OK() {
		if c.Dispatches != nil {
			c.Dispatches.Inc()
		}
		return nil
	}
	if c.DispatchFailures != nil {
		c.DispatchFailures.Inc()
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
