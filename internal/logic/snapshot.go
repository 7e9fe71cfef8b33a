package logic

import "time"

// Input is everything one decision cycle depends on. Compute is a pure
// function of this value: identical inputs always produce identical
// snapshots.
type Input struct {
	Schedules []Schedule
	// Devices is the managed device list, in configuration order.
	Devices []string

	Timestamp time.Time

	GlobalTrackers []string
	TrackerStates  map[string]bool

	OutdoorTemp   float64
	OutdoorKnown  bool
	ColdThreshold float64

	AutomationEnabled bool
}

// ClassifyOutdoor maps a raw outdoor reading onto its classification.
// An unreadable sensor reports unknown, which the condition tests treat
// as warm.
func ClassifyOutdoor(temp float64, known bool, threshold float64) TempClass {
	if !known {
		return ClassUnknown
	}
	if temp < threshold {
		return ClassCold
	}
	return ClassWarm
}

// Compute runs the full decision pipeline for one cycle: end-time
// derivation, per-schedule evaluation and per-device target resolution.
func Compute(in Input) *Snapshot {
	now := ClockMinute(in.Timestamp)
	class := ClassifyOutdoor(in.OutdoorTemp, in.OutdoorKnown, in.ColdThreshold)

	env := Env{
		Now:               now,
		GlobalTrackers:    in.GlobalTrackers,
		TrackerStates:     in.TrackerStates,
		OutdoorClass:      class,
		AutomationEnabled: in.AutomationEnabled,
	}
	anyoneHome := env.AnyoneHome()

	ends := DeriveEffectiveEnds(in.Schedules)

	decisions := make([]ScheduleDecision, 0, len(in.Schedules))
	active := 0
	for i := range in.Schedules {
		s := &in.Schedules[i]
		dec := Evaluate(s, ends[s.ID], env)
		if dec.Active {
			active++
		}
		decisions = append(decisions, dec)
	}

	devices := make(map[string]DeviceDecision, len(in.Devices))
	activeDevices := 0
	for _, device := range in.Devices {
		dec := ResolveDevice(device, decisions, now)
		if dec.Scheduled {
			activeDevices++
		}
		devices[device] = dec
	}

	trackersHome := 0
	for _, t := range in.GlobalTrackers {
		if in.TrackerStates[t] {
			trackersHome++
		}
	}
	trackerStates := make(map[string]bool, len(in.GlobalTrackers))
	for _, t := range in.GlobalTrackers {
		trackerStates[t] = in.TrackerStates[t]
	}

	return &Snapshot{
		AnyoneHome:   anyoneHome,
		BothAway:     !anyoneHome,
		OutdoorClass: class,
		Schedules:    decisions,
		Devices:      devices,
		Diagnostics: Diagnostics{
			EvaluatedAt:       in.Timestamp,
			NowMinute:         now,
			TrackerStates:     trackerStates,
			TrackersHome:      trackersHome,
			TrackersTotal:     len(in.GlobalTrackers),
			AutomationEnabled: in.AutomationEnabled,
			OutdoorTemp:       in.OutdoorTemp,
			OutdoorKnown:      in.OutdoorKnown,
			ScheduleCount:     len(in.Schedules),
			ActiveSchedules:   active,
			ActiveDevices:     activeDevices,
		},
	}
}
