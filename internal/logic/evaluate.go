package logic

// Env is the external context one evaluation cycle runs against.
type Env struct {
	Now Minute

	// GlobalTrackers is the configured global presence sensor list.
	// TrackerStates holds the current reading for every known tracker,
	// global and schedule-scoped alike. A missing entry counts as away.
	GlobalTrackers []string
	TrackerStates  map[string]bool

	OutdoorClass      TempClass
	AutomationEnabled bool
}

// AnyoneHome is the global presence summary. With no trackers configured,
// presence tracking is disabled and occupants are assumed home so schedules
// remain eligible.
func (e Env) AnyoneHome() bool {
	if len(e.GlobalTrackers) == 0 {
		return true
	}
	for _, t := range e.GlobalTrackers {
		if e.TrackerStates[t] {
			return true
		}
	}
	return false
}

// presenceSatisfied applies the schedule's presence test. A schedule-scoped
// tracker list overrides the global one; an empty effective list never
// blocks the schedule.
func presenceSatisfied(s *Schedule, env Env) bool {
	if !s.RequirePresence {
		return true
	}
	trackers := s.Trackers
	if len(trackers) == 0 {
		trackers = env.GlobalTrackers
	}
	if len(trackers) == 0 {
		return true
	}
	for _, t := range trackers {
		if env.TrackerStates[t] {
			return true
		}
	}
	return false
}

// tempConditionSatisfied applies the outdoor temperature gate. An unknown
// reading classifies as warm, so only CondCold schedules are blocked by a
// dead sensor.
func tempConditionSatisfied(cond TempCondition, class TempClass) bool {
	switch cond {
	case CondCold:
		return class == ClassCold
	case CondWarm:
		return class != ClassCold
	default:
		return true
	}
}

// Evaluate computes the decision for a single schedule, independent of all
// other schedules. effectiveEnd is the explicit end time or the one derived
// by DeriveEffectiveEnds for this cycle.
func Evaluate(s *Schedule, effectiveEnd Minute, env Env) ScheduleDecision {
	inWindow := InWindow(env.Now, s.Start, effectiveEnd)
	presenceOK := presenceSatisfied(s, env)
	tempOK := tempConditionSatisfied(s.TempCondition, env.OutdoorClass)

	dec := ScheduleDecision{
		ScheduleID:      s.ID,
		Name:            s.Name,
		Enabled:         s.Enabled,
		InWindow:        inWindow,
		PresenceOK:      presenceOK,
		TempConditionOK: tempOK,
		Start:           s.Start,
		EffectiveEnd:    effectiveEnd,
		EndDerived:      s.End == nil,
		Mode:            s.Mode,
		Temperature:     s.Temperature,
		FanMode:         s.FanMode,
		Devices:         s.Devices,
	}

	eligible := s.Enabled && env.AutomationEnabled && inWindow && tempOK

	switch {
	case eligible && presenceOK:
		dec.Active = true
	case eligible && !presenceOK && s.Away != nil:
		// Nobody home, but the schedule declares away overrides: a second
		// explicit pass with the away settings in place of the home ones.
		dec.Active = true
		dec.Away = true
		dec.Mode = s.Away.Mode
		dec.Temperature = s.Away.Temperature
	}

	return dec
}
