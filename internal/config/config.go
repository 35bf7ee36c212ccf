// YAML config loader with CUE validation integration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"droneops-mission/internal/coordinator"
	"droneops-mission/internal/geo"
	"droneops-mission/internal/mission"
	"droneops-mission/internal/navigator"
)

// Environment overrides.
const (
	EnvGreptimeEndpoint = "GREPTIMEDB_ENDPOINT"
	EnvGreptimeHTTP     = "GREPTIMEDB_HTTP"
	EnvMissionID        = "MISSION_ID"
)

var ErrInvalid = errors.New("invalid config")

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// GreptimeConfig locates the telemetry store. Endpoint is the gRPC
// host:port used for writes, HTTP the base URL used for SQL reads.
type GreptimeConfig struct {
	Endpoint string `yaml:"endpoint"`
	HTTP     string `yaml:"http"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// Enabled reports whether a GreptimeDB endpoint is configured.
func (g GreptimeConfig) Enabled() bool { return g.Endpoint != "" }

// SensorConfig describes a simulated gas plume around a source offset from
// the vehicle home.
type SensorConfig struct {
	Field    string  `yaml:"field"`
	Baseline float64 `yaml:"baseline"`
	Peak     float64 `yaml:"peak"`
	Scale    float64 `yaml:"scale"`
	Noise    float64 `yaml:"noise"`
	SourceN  float64 `yaml:"source_n"`
	SourceE  float64 `yaml:"source_e"`
	Seed     int64   `yaml:"seed"`
}

// VehicleConfig describes one vehicle: its navigator tuning, command
// server and simulated hardware.
type VehicleConfig struct {
	navigator.Config `yaml:",inline"`

	Listen         string        `yaml:"listen"` // command server address, e.g. :5000
	URL            string        `yaml:"url"`    // base URL the coordinator uses
	Home           geo.Position  `yaml:"home"`
	Speedup        float64       `yaml:"speedup"`
	LaunchPlanFile string        `yaml:"launch_plan"`
	RecordInterval time.Duration `yaml:"record_interval"`
	Sensor         *SensorConfig `yaml:"sensor"`
}

// CoordinatorConfig is the investigation coordinator section.
type CoordinatorConfig struct {
	coordinator.Config `yaml:",inline"`

	SurveyPlanFile string `yaml:"survey_plan"`
}

// UnmarshalYAML applies coordinator.DefaultThreshold only when the
// threshold key is absent.
func (c *CoordinatorConfig) UnmarshalYAML(n *yaml.Node) error {
	type plain CoordinatorConfig
	p := plain{Config: coordinator.Config{Threshold: coordinator.DefaultThreshold}}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = CoordinatorConfig(p)
	return nil
}

// Config is the root configuration.
type Config struct {
	MissionID   string             `yaml:"mission_id"`
	Log         LogConfig          `yaml:"log"`
	Greptime    GreptimeConfig     `yaml:"greptime"`
	Vehicles    []VehicleConfig    `yaml:"vehicles"`
	Coordinator *CoordinatorConfig `yaml:"coordinator"`
	MetricsAddr string             `yaml:"metrics_addr"`
}

// Load validates the YAML file at configPath against the CUE schema at
// schemaPath, decodes it, applies environment overrides and defaults, and
// loads any referenced plan files relative to the config directory.
func Load(configPath, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if schemaPath != "" {
		schema, err := os.ReadFile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read CUE schema: %w", err)
		}
		if err := ValidateBytes(configPath, data, schema); err != nil {
			return nil, err
		}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.loadPlans(filepath.Dir(configPath)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML without validation or defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvGreptimeEndpoint); v != "" {
		c.Greptime.Endpoint = v
	}
	if v := getenv(EnvGreptimeHTTP); v != "" {
		c.Greptime.HTTP = v
	}
	if v := getenv(EnvMissionID); v != "" {
		c.MissionID = v
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Greptime.Database == "" {
		c.Greptime.Database = "public"
	}
	for i := range c.Vehicles {
		v := &c.Vehicles[i]
		v.Config.ApplyDefaults()
		if v.Speedup <= 0 {
			v.Speedup = 1
		}
		if v.RecordInterval <= 0 {
			v.RecordInterval = time.Second
		}
		if v.URL == "" && v.Listen != "" {
			v.URL = "http://localhost" + v.Listen
		}
		if s := v.Sensor; s != nil {
			if s.Field == "" {
				s.Field = "co2.CO2"
			}
			if s.Baseline == 0 {
				s.Baseline = 400
			}
			if s.Peak == 0 {
				s.Peak = 600
			}
		}
	}
	if cc := c.Coordinator; cc != nil {
		if cc.MissionID == "" {
			cc.MissionID = c.MissionID
		}
		cc.Config.ApplyDefaults()
	}
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	if len(c.Vehicles) == 0 {
		return fmt.Errorf("%w: no vehicles", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Vehicles))
	for _, v := range c.Vehicles {
		if v.VehicleID == "" {
			return fmt.Errorf("%w: vehicle without id", ErrInvalid)
		}
		if seen[v.VehicleID] {
			return fmt.Errorf("%w: duplicate vehicle %q", ErrInvalid, v.VehicleID)
		}
		seen[v.VehicleID] = true
	}
	if cc := c.Coordinator; cc != nil {
		if !seen[cc.PrimaryID] || !seen[cc.SecondaryID] {
			return fmt.Errorf("%w: coordinator vehicles %q/%q not configured", ErrInvalid, cc.PrimaryID, cc.SecondaryID)
		}
		if cc.PrimaryID == cc.SecondaryID {
			return fmt.Errorf("%w: primary and secondary are the same vehicle", ErrInvalid)
		}
	}
	return nil
}

// Vehicle returns the vehicle with the given ID.
func (c *Config) Vehicle(id string) (*VehicleConfig, bool) {
	for i := range c.Vehicles {
		if c.Vehicles[i].VehicleID == id {
			return &c.Vehicles[i], true
		}
	}
	return nil, false
}

// Addrs maps vehicle IDs to command server URLs.
func (c *Config) Addrs() map[string]string {
	m := make(map[string]string, len(c.Vehicles))
	for _, v := range c.Vehicles {
		if v.URL != "" {
			m[v.VehicleID] = v.URL
		}
	}
	return m
}

func (c *Config) loadPlans(dir string) error {
	load := func(path string) (*mission.Plan, error) {
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return mission.LoadFile(path)
	}
	for i := range c.Vehicles {
		v := &c.Vehicles[i]
		if v.LaunchPlanFile == "" {
			continue
		}
		p, err := load(v.LaunchPlanFile)
		if err != nil {
			return fmt.Errorf("vehicle %s launch plan: %w", v.VehicleID, err)
		}
		v.LaunchPlan = p
	}
	if cc := c.Coordinator; cc != nil && cc.SurveyPlanFile != "" {
		p, err := load(cc.SurveyPlanFile)
		if err != nil {
			return fmt.Errorf("survey plan: %w", err)
		}
		cc.Survey = p
	}
	return nil
}
