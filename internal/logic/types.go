// Package logic contains the pure decision core for heating control.
// This package has NO external dependencies (no MQTT, HTTP, OS, or time.Sleep).
// Time is always injectable: the wall clock enters as a minute-of-day value
// plus an evaluation timestamp, and nothing in here blocks.
package logic

import (
	"fmt"
	"time"
)

// HVACMode is the operating mode requested from a climate device.
type HVACMode string

const (
	ModeHeat HVACMode = "heat"
	ModeCool HVACMode = "cool"
	ModeOff  HVACMode = "off"
)

// TempCondition gates a schedule on the outdoor temperature classification.
type TempCondition string

const (
	CondAlways TempCondition = "always"
	CondCold   TempCondition = "cold"
	CondWarm   TempCondition = "warm"
)

// TempClass is the outdoor temperature classification for one cycle.
type TempClass string

const (
	ClassCold    TempClass = "cold"
	ClassWarm    TempClass = "warm"
	ClassUnknown TempClass = "unknown"
)

// MinutesPerDay is the length of the schedule timeline.
const MinutesPerDay = 1440

// Minute is a minute-of-day in [0, 1440).
type Minute int

// ParseClock parses a "HH:MM" string into a Minute.
func ParseClock(s string) (Minute, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("parse clock %q: out of range", s)
	}
	return Minute(h*60 + m), nil
}

// ClockMinute converts a wall-clock time to its minute-of-day.
func ClockMinute(t time.Time) Minute {
	return Minute(t.Hour()*60 + t.Minute())
}

// String renders the minute as "HH:MM".
func (m Minute) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// StartAge is the wrap-aware number of minutes elapsed since start.
// Lower means "started more recently".
func StartAge(now, start Minute) Minute {
	return ((now - start) % MinutesPerDay + MinutesPerDay) % MinutesPerDay
}

// InWindow reports whether now falls in the half-open window [start, end).
// start == end means the window covers the whole day. A window with
// start > end wraps across midnight.
func InWindow(now, start, end Minute) bool {
	if start == end {
		return true
	}
	if start < end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

// AwayOverride is the substitute target applied when a presence-gated
// schedule finds nobody home.
type AwayOverride struct {
	Mode        HVACMode
	Temperature float64
}

// Schedule is one user-authored rule. Immutable during a cycle. The ID is a
// stable opaque identifier preserved across edits.
type Schedule struct {
	ID      string
	Name    string
	Enabled bool

	Start Minute
	// End is nil when the end time should be derived from the next
	// schedule on each device's timeline.
	End *Minute

	Mode        HVACMode
	Temperature float64
	FanMode     string

	// RequirePresence gates the schedule on at least one tracker being home.
	RequirePresence bool
	// Trackers overrides the global tracker list when non-empty.
	Trackers []string
	Away     *AwayOverride

	// TempCondition defaults to CondAlways.
	TempCondition TempCondition

	Devices []string
}

// HasDevice reports whether the schedule references the given device.
func (s *Schedule) HasDevice(device string) bool {
	for _, d := range s.Devices {
		if d == device {
			return true
		}
	}
	return false
}

// ScheduleDecision is the per-schedule evaluation result for one cycle.
// Recomputed fresh every cycle; never mutated, only replaced.
type ScheduleDecision struct {
	ScheduleID string
	Name       string
	Enabled    bool

	InWindow        bool
	PresenceOK      bool
	TempConditionOK bool
	Active          bool
	// Away is true when the away-mode substitution was applied.
	Away bool

	Start Minute
	// EffectiveEnd is the explicit end, or the derived one for this cycle.
	EffectiveEnd Minute
	EndDerived   bool

	// Resolved target carried by this schedule (away-substituted when Away).
	Mode        HVACMode
	Temperature float64
	FanMode     string

	Devices []string
}

// DeviceDecision is the resolved target for one managed device.
// At most one winning schedule per device per cycle.
type DeviceDecision struct {
	Device string
	// Scheduled is false when no schedule currently targets the device:
	// the device is left untouched and no command is issued.
	Scheduled bool

	WinningSchedule string
	Mode            HVACMode
	Temperature     float64
	FanMode         string
}

// Diagnostics captures the raw inputs behind one decision cycle.
type Diagnostics struct {
	EvaluatedAt       time.Time
	NowMinute         Minute
	TrackerStates     map[string]bool
	TrackersHome      int
	TrackersTotal     int
	AutomationEnabled bool
	OutdoorTemp       float64
	OutdoorKnown      bool
	ScheduleCount     int
	ActiveSchedules   int
	ActiveDevices     int
}

// Snapshot is the full decision result for one cycle. Immutable once built;
// superseded by the next cycle's snapshot.
type Snapshot struct {
	AnyoneHome   bool
	BothAway     bool
	OutdoorClass TempClass

	// Schedules preserves declaration order.
	Schedules []ScheduleDecision
	Devices   map[string]DeviceDecision

	Diagnostics Diagnostics
}

// ScheduleDecision returns the decision for the given schedule id.
func (s *Snapshot) ScheduleDecision(id string) (ScheduleDecision, bool) {
	for _, d := range s.Schedules {
		if d.ScheduleID == id {
			return d, true
		}
	}
	return ScheduleDecision{}, false
}
