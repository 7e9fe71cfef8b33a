package logic

import "testing"

func sched(id string, start Minute, devices ...string) Schedule {
	return Schedule{
		ID:          id,
		Name:        id,
		Enabled:     true,
		Start:       start,
		Mode:        ModeHeat,
		Temperature: 20,
		FanMode:     "auto",
		Devices:     devices,
	}
}

func TestDeriveEffectiveEndsExplicitWins(t *testing.T) {
	end := Minute(9 * 60)
	a := sched("a", 7*60, "living_room")
	a.End = &end
	b := sched("b", 10*60, "living_room")

	ends := DeriveEffectiveEnds([]Schedule{a, b})
	if ends["a"] != end {
		t.Errorf("explicit end overwritten: got %v, want %v", ends["a"], end)
	}
}

func TestDeriveEffectiveEndsNextStart(t *testing.T) {
	a := sched("a", 7*60, "living_room")
	b := sched("b", 10*60, "living_room")
	c := sched("c", 22*60, "living_room")

	ends := DeriveEffectiveEnds([]Schedule{a, b, c})
	if ends["a"] != 10*60 {
		t.Errorf("a ends at %v, want 10:00", ends["a"])
	}
	if ends["b"] != 22*60 {
		t.Errorf("b ends at %v, want 22:00", ends["b"])
	}
	// Last of the day wraps to the earliest start.
	if ends["c"] != 7*60 {
		t.Errorf("c ends at %v, want 07:00", ends["c"])
	}
}

func TestDeriveEffectiveEndsSoloSchedule(t *testing.T) {
	a := sched("a", 7*60, "living_room")
	ends := DeriveEffectiveEnds([]Schedule{a})
	// end == start means the window covers the whole day.
	if ends["a"] != a.Start {
		t.Errorf("solo schedule end = %v, want its own start %v", ends["a"], a.Start)
	}
	if !InWindow(3*60, a.Start, ends["a"]) {
		t.Error("solo schedule should cover every minute of the day")
	}
}

func TestDeriveEffectiveEndsSkipsEqualStarts(t *testing.T) {
	a := sched("a", 21*60, "living_room")
	b := sched("b", 21*60, "living_room")
	c := sched("c", 23*60, "living_room")

	ends := DeriveEffectiveEnds([]Schedule{a, b, c})
	if ends["a"] != 23*60 {
		t.Errorf("a ends at %v; a colliding start must not zero the window", ends["a"])
	}
	if ends["b"] != 23*60 {
		t.Errorf("b ends at %v, want 23:00", ends["b"])
	}
}

func TestDeriveEffectiveEndsIgnoresDisabled(t *testing.T) {
	a := sched("a", 7*60, "living_room")
	b := sched("b", 10*60, "living_room")
	b.Enabled = false
	c := sched("c", 18*60, "living_room")

	ends := DeriveEffectiveEnds([]Schedule{a, b, c})
	if ends["a"] != 18*60 {
		t.Errorf("a ends at %v; disabled schedules must not truncate windows", ends["a"])
	}
}

func TestDeriveEffectiveEndsIgnoresOtherDevices(t *testing.T) {
	a := sched("a", 7*60, "living_room")
	b := sched("b", 9*60, "bedroom")
	c := sched("c", 12*60, "living_room")

	ends := DeriveEffectiveEnds([]Schedule{a, b, c})
	if ends["a"] != 12*60 {
		t.Errorf("a ends at %v; schedules for other devices are irrelevant", ends["a"])
	}
}

func TestDeriveEffectiveEndsMultiDeviceKeepsLongestSpan(t *testing.T) {
	// a covers both rooms; the living room has a successor at 10:00 but the
	// bedroom has none, so a must keep running for the bedroom's sake.
	a := sched("a", 7*60, "living_room", "bedroom")
	b := sched("b", 10*60, "living_room")

	ends := DeriveEffectiveEnds([]Schedule{a, b})
	if ends["a"] != a.Start {
		t.Errorf("a ends at %v, want full-day window (end == start)", ends["a"])
	}
}

func TestDeriveEffectiveEndsMultiDeviceBothTruncated(t *testing.T) {
	a := sched("a", 7*60, "living_room", "bedroom")
	b := sched("b", 10*60, "living_room")
	c := sched("c", 13*60, "bedroom")

	ends := DeriveEffectiveEnds([]Schedule{a, b, c})
	// The later of the two successors wins.
	if ends["a"] != 13*60 {
		t.Errorf("a ends at %v, want 13:00", ends["a"])
	}
}

func TestDeriveEffectiveEndsWrapAware(t *testing.T) {
	a := sched("a", 22*60, "living_room")
	b := sched("b", 6*60, "living_room")

	ends := DeriveEffectiveEnds([]Schedule{a, b})
	if ends["a"] != 6*60 {
		t.Errorf("a ends at %v, want 06:00 across midnight", ends["a"])
	}
	if ends["b"] != 22*60 {
		t.Errorf("b ends at %v, want 22:00", ends["b"])
	}
}
