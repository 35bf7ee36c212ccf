package autopilot

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"droneops-mission/internal/geo"
)

// SimConfig parameterizes a simulated vehicle.
type SimConfig struct {
	Home          geo.Position
	Speedup       float64       // simulated seconds per wall second
	Tick          time.Duration // integration step in wall time
	ClimbRate     float64       // m/s
	RTLAltitude   float64       // m above home
	PositionNoise float64       // std dev in meters
	Seed          int64
}

func (c *SimConfig) applyDefaults() {
	if c.Speedup <= 0 {
		c.Speedup = 1
	}
	if c.Tick <= 0 {
		c.Tick = 100 * time.Millisecond
	}
	if c.ClimbRate <= 0 {
		c.ClimbRate = 2.5
	}
	if c.RTLAltitude <= 0 {
		c.RTLAltitude = 15
	}
}

// Sim is a kinematic vehicle: it flies straight at the commanded speed and
// climbs at a fixed rate. It has no position fix until the first Step.
type Sim struct {
	cfg SimConfig

	mu     sync.Mutex
	pos    geo.Position
	target geo.Position
	speed  float64
	mode   string
	armed  bool
	moving bool
	fix    bool
	rng    *rand.Rand
}

// NewSim creates a disarmed simulated vehicle sitting at its home.
func NewSim(cfg SimConfig) *Sim {
	cfg.applyDefaults()
	home := cfg.Home
	home.Alt = 0
	return &Sim{
		cfg:  cfg,
		pos:  home,
		mode: ModeStabilize,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Run advances the simulation every tick until ctx is cancelled.
func (s *Sim) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Step(now.Sub(last))
			last = now
		}
	}
}

// Step integrates motion over wall time dt.
func (s *Sim) Step(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fix = true
	if !s.armed || !s.moving {
		return
	}
	sec := dt.Seconds() * s.cfg.Speedup

	alt := s.pos.Alt
	dAlt := s.target.Alt - alt
	climb := s.cfg.ClimbRate * sec
	if math.Abs(dAlt) <= climb {
		alt = s.target.Alt
	} else {
		alt += math.Copysign(climb, dAlt)
	}

	north, east := geo.RelativeOffset(s.pos, s.target)
	dist := math.Hypot(north, east)
	travel := s.speed * sec
	if dist <= travel || dist == 0 {
		s.pos = geo.Position{Lat: s.target.Lat, Lon: s.target.Lon, Alt: alt}
	} else {
		f := travel / dist
		s.pos = geo.Offset(s.pos, north*f, east*f, alt)
	}

	if s.mode == ModeLand && s.pos.Alt <= 0 {
		s.pos.Alt = 0
		s.armed = false
		s.moving = false
	}
}

// SetMode switches the flight mode, as an operator on the radio would.
func (s *Sim) SetMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	if mode != ModeGuided && mode != ModeLand {
		// hold position
		s.target = s.pos
	}
}

// Armed reports whether the motors are armed.
func (s *Sim) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// ArmAndTakeoff arms in guided mode and blocks until 90% of alt is reached.
// It returns immediately if the vehicle is already armed.
func (s *Sim) ArmAndTakeoff(ctx context.Context, alt float64) error {
	s.mu.Lock()
	if s.armed {
		s.mu.Unlock()
		return nil
	}
	s.mode = ModeGuided
	s.armed = true
	s.moving = true
	s.target = geo.Position{Lat: s.pos.Lat, Lon: s.pos.Lon, Alt: alt}
	s.speed = 0
	s.mu.Unlock()

	poll := time.NewTicker(s.cfg.Tick)
	defer poll.Stop()
	for {
		s.mu.Lock()
		reached := s.pos.Alt >= alt*0.9
		mode := s.mode
		s.mu.Unlock()
		if reached {
			return nil
		}
		if mode != ModeGuided {
			return fmt.Errorf("takeoff interrupted: %w", ErrNotGuided)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
		}
	}
}

// Goto commands flight toward target at speed m/s.
func (s *Sim) Goto(ctx context.Context, target geo.Position, speed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return ErrNotArmed
	}
	if s.mode != ModeGuided {
		return ErrNotGuided
	}
	s.target = target
	s.speed = speed
	s.moving = true
	return nil
}

// Mode returns the current flight mode.
func (s *Sim) Mode(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, nil
}

// Home returns the configured home location.
func (s *Sim) Home(ctx context.Context) (geo.Position, error) {
	return s.cfg.Home, nil
}

// Position returns the current position with optional jitter.
func (s *Sim) Position(ctx context.Context) (geo.Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fix {
		return geo.Position{}, false, nil
	}
	p := s.pos
	if n := s.cfg.PositionNoise; n > 0 {
		p = geo.Offset(p, s.rng.NormFloat64()*n, s.rng.NormFloat64()*n, p.Alt)
	}
	return p, true, nil
}

// ReturnToLaunch flies back over home at the RTL altitude, staying guided.
func (s *Sim) ReturnToLaunch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return ErrNotArmed
	}
	s.mode = ModeGuided
	s.target = geo.Position{Lat: s.cfg.Home.Lat, Lon: s.cfg.Home.Lon, Alt: s.cfg.RTLAltitude}
	if s.speed <= 0 {
		s.speed = 1
	}
	s.moving = true
	return nil
}

// Land descends in place and disarms on touchdown.
func (s *Sim) Land(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeLand
	if !s.armed {
		return nil
	}
	s.target = geo.Position{Lat: s.pos.Lat, Lon: s.pos.Lon, Alt: 0}
	s.moving = true
	return nil
}
