package logic

// TransitionDetector compares consecutive snapshots and decides whether the
// dispatcher needs to run at all. Device actuation is the expensive and
// risky side of a cycle; when nothing relevant changed, no command is
// issued and manual adjustments on the devices survive.
//
// Not safe for concurrent use; the coordinator owns exactly one.
type TransitionDetector struct {
	prev  *Snapshot
	force bool
}

// NewTransitionDetector returns a detector with no previous snapshot, so
// the first Detect call always reports a transition.
func NewTransitionDetector() *TransitionDetector {
	return &TransitionDetector{}
}

// ForceNext makes the next Detect call report a transition regardless of
// snapshot contents. Used after configuration changes and external refresh
// requests; the flag is consumed by that Detect call.
func (t *TransitionDetector) ForceNext() {
	t.force = true
}

// Detect reports whether the new snapshot warrants re-issuing commands,
// with a short reason for the log. The snapshot becomes the comparison
// baseline for the next cycle.
func (t *TransitionDetector) Detect(current *Snapshot) (bool, string) {
	prev := t.prev
	t.prev = current

	if t.force {
		t.force = false
		return true, "forced refresh"
	}
	if prev == nil {
		return true, "first cycle"
	}
	if current.AnyoneHome != prev.AnyoneHome {
		return true, "presence changed"
	}
	if current.OutdoorClass != prev.OutdoorClass {
		return true, "outdoor classification changed"
	}
	if changed, reason := scheduleSetChanged(prev, current); changed {
		return true, reason
	}
	if device, changed := deviceTargetChanged(prev, current); changed {
		return true, "device target changed: " + device
	}
	return false, ""
}

func scheduleSetChanged(prev, current *Snapshot) (bool, string) {
	prevActive := make(map[string]bool, len(prev.Schedules))
	for _, d := range prev.Schedules {
		prevActive[d.ScheduleID] = d.Active
	}
	for _, d := range current.Schedules {
		was, known := prevActive[d.ScheduleID]
		if !known {
			return true, "schedule added: " + d.ScheduleID
		}
		if was != d.Active {
			return true, "schedule active changed: " + d.Name
		}
		delete(prevActive, d.ScheduleID)
	}
	for id := range prevActive {
		return true, "schedule removed: " + id
	}
	return false, ""
}

func deviceTargetChanged(prev, current *Snapshot) (string, bool) {
	for device, cur := range current.Devices {
		old, known := prev.Devices[device]
		if !known || old != cur {
			return device, true
		}
	}
	for device := range prev.Devices {
		if _, known := current.Devices[device]; !known {
			return device, true
		}
	}
	return "", false
}
