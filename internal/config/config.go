// Package config loads and validates the daemon configuration from a YAML
// file. All parsing and validation happens here, at the load boundary;
// the rest of the daemon works with strongly typed values only.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/emavap/heating-control/internal/climate"
	"github.com/emavap/heating-control/internal/logic"
)

// Defaults applied when the file omits a value.
const (
	DefaultUpdateInterval = 60 * time.Second
	DefaultColdThreshold  = 15.0
	DefaultTemperature    = 20.0
	DefaultFanMode        = "auto"
	DefaultBaseTopic      = "heating-control"
	DefaultClientID       = "heating-control"
	DefaultHTTPAddr       = ":8080"
)

// Duration wraps time.Duration for YAML decoding of values like "60s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MQTT is the broker connection configuration.
type MQTT struct {
	Broker    string `yaml:"broker"`
	ClientID  string `yaml:"client_id"`
	BaseTopic string `yaml:"base_topic"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// HTTP is the diagnostics server configuration.
type HTTP struct {
	// Addr is the listen address; empty disables the server.
	Addr string `yaml:"addr"`
}

// DeviceSpec describes one managed climate device.
type DeviceSpec struct {
	ID       string   `yaml:"id"`
	FanModes []string `yaml:"fan_modes"`
}

// AwaySpec is the optional away-mode override on a schedule.
type AwaySpec struct {
	Mode        string  `yaml:"mode"`
	Temperature float64 `yaml:"temperature"`
}

// ScheduleSpec is the raw, user-authored schedule record.
type ScheduleSpec struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`

	Start string `yaml:"start"`
	End   string `yaml:"end"`

	Mode        string  `yaml:"mode"`
	Temperature float64 `yaml:"temperature"`
	FanMode     string  `yaml:"fan_mode"`

	RequirePresence *bool     `yaml:"require_presence"`
	Trackers        []string  `yaml:"trackers"`
	Away            *AwaySpec `yaml:"away"`

	Condition string `yaml:"condition"`

	Devices []string `yaml:"devices"`
}

// Config is the full daemon configuration.
type Config struct {
	AutomationEnabled *bool    `yaml:"automation_enabled"`
	UpdateInterval    Duration `yaml:"update_interval"`
	SettleDelay       Duration `yaml:"settle_delay"`
	FinalSettleDelay  Duration `yaml:"final_settle_delay"`

	Trackers      []string `yaml:"trackers"`
	OutdoorSensor string   `yaml:"outdoor_sensor"`
	ColdThreshold *float64 `yaml:"cold_threshold"`

	Devices         []DeviceSpec `yaml:"devices"`
	ExcludedDevices []string     `yaml:"excluded_devices"`

	Schedules []ScheduleSpec `yaml:"schedules"`

	MQTT MQTT `yaml:"mqtt"`
	HTTP HTTP `yaml:"http"`

	LogLevel string `yaml:"log_level"`
	// LogFormat selects "console" or "json" output.
	LogFormat string `yaml:"log_format"`
}

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.UpdateInterval == 0 {
		c.UpdateInterval = Duration(DefaultUpdateInterval)
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = Duration(climate.DefaultSettle)
	}
	if c.FinalSettleDelay == 0 {
		c.FinalSettleDelay = Duration(climate.DefaultFinalSettle)
	}
	if c.ColdThreshold == nil {
		v := DefaultColdThreshold
		c.ColdThreshold = &v
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = DefaultClientID
	}
	if c.MQTT.BaseTopic == "" {
		c.MQTT.BaseTopic = DefaultBaseTopic
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}

	for i := range c.Schedules {
		s := &c.Schedules[i]
		if s.ID == "" {
			// Stable opaque identifier; generated once at load and kept
			// in memory for the process lifetime. Users who want identity
			// across restarts set an explicit id.
			s.ID = uuid.NewString()
		}
		if s.Start == "" {
			s.Start = "00:00"
		}
		if s.Mode == "" {
			s.Mode = string(logic.ModeHeat)
		}
		if s.Temperature == 0 {
			s.Temperature = DefaultTemperature
		}
		if s.FanMode == "" {
			s.FanMode = DefaultFanMode
		}
		if s.Condition == "" {
			s.Condition = string(logic.CondAlways)
		}
	}
}

func (c *Config) validate() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("config: mqtt.broker is required")
	}
	if len(c.Devices) == 0 {
		return fmt.Errorf("config: at least one device is required")
	}

	known := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if d.ID == "" {
			return fmt.Errorf("config: device with empty id")
		}
		if known[d.ID] {
			return fmt.Errorf("config: duplicate device %q", d.ID)
		}
		known[d.ID] = true
	}
	for _, id := range c.ExcludedDevices {
		if !known[id] {
			return fmt.Errorf("config: excluded device %q is not a managed device", id)
		}
	}

	ids := make(map[string]bool, len(c.Schedules))
	for i := range c.Schedules {
		s := &c.Schedules[i]
		if ids[s.ID] {
			return fmt.Errorf("config: duplicate schedule id %q", s.ID)
		}
		ids[s.ID] = true
		if _, err := c.buildSchedule(s); err != nil {
			return fmt.Errorf("config: schedule %q: %w", scheduleLabel(s), err)
		}
	}
	return nil
}

func scheduleLabel(s *ScheduleSpec) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

func parseMode(raw string) (logic.HVACMode, error) {
	switch logic.HVACMode(raw) {
	case logic.ModeHeat, logic.ModeCool, logic.ModeOff:
		return logic.HVACMode(raw), nil
	}
	return "", fmt.Errorf("unknown hvac mode %q", raw)
}

func (c *Config) buildSchedule(spec *ScheduleSpec) (logic.Schedule, error) {
	start, err := logic.ParseClock(spec.Start)
	if err != nil {
		return logic.Schedule{}, err
	}

	var end *logic.Minute
	if spec.End != "" {
		m, err := logic.ParseClock(spec.End)
		if err != nil {
			return logic.Schedule{}, err
		}
		end = &m
	}

	mode, err := parseMode(spec.Mode)
	if err != nil {
		return logic.Schedule{}, err
	}

	var away *logic.AwayOverride
	if spec.Away != nil {
		awayMode, err := parseMode(spec.Away.Mode)
		if err != nil {
			return logic.Schedule{}, fmt.Errorf("away: %w", err)
		}
		away = &logic.AwayOverride{Mode: awayMode, Temperature: spec.Away.Temperature}
	}

	switch logic.TempCondition(spec.Condition) {
	case logic.CondAlways, logic.CondCold, logic.CondWarm:
	default:
		return logic.Schedule{}, fmt.Errorf("unknown condition %q", spec.Condition)
	}

	enabled := true
	if spec.Enabled != nil {
		enabled = *spec.Enabled
	}
	requirePresence := true
	if spec.RequirePresence != nil {
		requirePresence = *spec.RequirePresence
	}

	return logic.Schedule{
		ID:              spec.ID,
		Name:            spec.Name,
		Enabled:         enabled,
		Start:           start,
		End:             end,
		Mode:            mode,
		Temperature:     spec.Temperature,
		FanMode:         spec.FanMode,
		RequirePresence: requirePresence,
		Trackers:        spec.Trackers,
		Away:            away,
		TempCondition:   logic.TempCondition(spec.Condition),
		Devices:         spec.Devices,
	}, nil
}

// BuildSchedules converts the validated specs into the decision core's
// schedule records, preserving declaration order.
func (c *Config) BuildSchedules() []logic.Schedule {
	out := make([]logic.Schedule, 0, len(c.Schedules))
	for i := range c.Schedules {
		s, err := c.buildSchedule(&c.Schedules[i])
		if err != nil {
			// validate already rejected bad specs.
			continue
		}
		out = append(out, s)
	}
	return out
}

// BuildDevices converts the device specs for the dispatcher.
func (c *Config) BuildDevices() []climate.Device {
	out := make([]climate.Device, 0, len(c.Devices))
	for _, d := range c.Devices {
		out = append(out, climate.Device{ID: d.ID, FanModes: d.FanModes})
	}
	return out
}

// DeviceIDs returns the managed device identifiers in configuration order.
func (c *Config) DeviceIDs() []string {
	out := make([]string, 0, len(c.Devices))
	for _, d := range c.Devices {
		out = append(out, d.ID)
	}
	return out
}

// Automation reports the global automation-enabled flag (default true).
func (c *Config) Automation() bool {
	return c.AutomationEnabled == nil || *c.AutomationEnabled
}
