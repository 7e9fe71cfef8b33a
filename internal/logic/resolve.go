package logic

// ResolveDevice selects the single winning schedule for a device from this
// cycle's schedule decisions, or the no-change sentinel when none targets
// it. Policy: most recent start wins — the surviving schedule with minimal
// (now − start) mod 1440; ties go to declaration order. A newer instruction
// supersedes an older, still-nominally-active one, which allows compact
// schedule chains instead of disjoint windows.
func ResolveDevice(device string, decisions []ScheduleDecision, now Minute) DeviceDecision {
	winner := -1
	var winnerAge Minute

	for i := range decisions {
		d := &decisions[i]
		if !d.Active || !hasDevice(d.Devices, device) {
			continue
		}
		// Re-validate the window against the current instant. Guards
		// against boundary drift between derived ends and cycle timing.
		if !InWindow(now, d.Start, d.EffectiveEnd) {
			continue
		}
		age := StartAge(now, d.Start)
		if winner < 0 || age < winnerAge {
			winner = i
			winnerAge = age
		}
	}

	if winner < 0 {
		return DeviceDecision{Device: device}
	}

	w := decisions[winner]
	return DeviceDecision{
		Device:          device,
		Scheduled:       true,
		WinningSchedule: w.ScheduleID,
		Mode:            w.Mode,
		Temperature:     w.Temperature,
		FanMode:         w.FanMode,
	}
}

func hasDevice(devices []string, device string) bool {
	for _, d := range devices {
		if d == device {
			return true
		}
	}
	return false
}
