package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/emavap/heating-control/internal/climate"
	"github.com/emavap/heating-control/internal/logic"
	"github.com/emavap/heating-control/internal/mqtt"
	"github.com/emavap/heating-control/internal/status"
)

type fakeSensors struct {
	trackers     map[string]bool
	outdoor      float64
	outdoorKnown bool
}

func (f *fakeSensors) TrackerStates() map[string]bool { return f.trackers }
func (f *fakeSensors) Outdoor() (float64, bool)       { return f.outdoor, f.outdoorKnown }

type fixture struct {
	coord     *Coordinator
	commander *climate.FakeCommander
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	sensors   *fakeSensors
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		commander: climate.NewFakeCommander(),
		publisher: mqtt.NewFakePublisher(),
		sensors: &fakeSensors{
			trackers:     map[string]bool{"person/alice": true},
			outdoor:      4,
			outdoorKnown: true,
		},
		clock: time.Date(2026, time.January, 12, 8, 30, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }

	devices := []climate.Device{{ID: "living_room", FanModes: []string{"auto"}}, {ID: "bedroom"}}
	controller := climate.NewController(f.commander, devices, nil, zerolog.Nop(), climate.Options{
		Sleep: func(context.Context, time.Duration) error { return nil },
		Now:   now,
	})
	f.tracker = status.NewTracker(f.clock, status.Config{Broker: "tcp://broker:1883"})

	f.coord = New(Options{
		Schedules: []logic.Schedule{
			{
				ID: "morning", Name: "Morning", Enabled: true,
				Start: 7 * 60, Mode: logic.ModeHeat, Temperature: 21, FanMode: "auto",
				Devices: []string{"living_room"},
			},
			{
				ID: "evening", Name: "Evening", Enabled: true,
				Start: 18 * 60, Mode: logic.ModeHeat, Temperature: 18,
				Devices: []string{"bedroom"},
			},
			{
				ID: "boost", Name: "Boost", Enabled: false,
				Start: 8 * 60, Mode: logic.ModeHeat, Temperature: 23, FanMode: "auto",
				Devices: []string{"living_room"},
			},
		},
		Settings: Settings{
			Devices:           []string{"living_room", "bedroom"},
			GlobalTrackers:    []string{"person/alice"},
			ColdThreshold:     15,
			AutomationEnabled: true,
		},
		Sensors:    f.sensors,
		Controller: controller,
		Tracker:    f.tracker,
		Publisher:  f.publisher,
		Conn:       f.publisher,
		Now:        now,
		Logger:     zerolog.Nop(),
	})
	return f
}

func TestRunCycleFirstDispatch(t *testing.T) {
	f := newFixture(t)

	snap := f.coord.RunCycle(context.Background())
	if snap == nil {
		t.Fatal("cycle produced no snapshot")
	}

	// Both solo schedules run full-day windows, so both devices get their
	// initial mode and temperature.
	living := f.commander.CallsFor("living_room")
	if len(living) != 3 {
		t.Fatalf("living_room calls = %+v, want mode+temperature+fan", living)
	}
	bedroom := f.commander.CallsFor("bedroom")
	if len(bedroom) != 2 {
		t.Fatalf("bedroom calls = %+v, want mode+temperature", bedroom)
	}
	if bedroom[1].Value != 18 {
		t.Errorf("bedroom temperature = %v, want 18", bedroom[1].Value)
	}

	st := f.tracker.Snapshot()
	if st.Counters.Cycles != 1 || st.Counters.Transitions != 1 || st.Counters.CommandsSent != 5 {
		t.Errorf("counters = %+v", st.Counters)
	}
	if !st.MQTTConnected {
		t.Error("broker connection status not propagated")
	}
	if len(f.publisher.Snapshots) != 1 {
		t.Fatalf("got %d snapshot publishes, want 1", len(f.publisher.Snapshots))
	}

	var out status.StatusJSON
	if err := json.Unmarshal(f.publisher.Snapshots[0], &out); err != nil {
		t.Fatalf("published snapshot is not valid JSON: %v", err)
	}
	if !out.Status.Ready || out.Status.Decision == nil {
		t.Error("published snapshot must carry the decision state")
	}
}

func TestRunCycleQuietWhenUnchanged(t *testing.T) {
	f := newFixture(t)
	f.coord.RunCycle(context.Background())
	f.commander.Reset()

	f.clock = f.clock.Add(time.Minute)
	f.coord.RunCycle(context.Background())

	if len(f.commander.Calls) != 0 {
		t.Errorf("unchanged cycle issued commands: %+v", f.commander.Calls)
	}
	st := f.tracker.Snapshot()
	if st.Counters.Cycles != 2 || st.Counters.Transitions != 1 {
		t.Errorf("counters = %+v, want 2 cycles and still 1 transition", st.Counters)
	}
	if len(f.publisher.Snapshots) != 2 {
		t.Errorf("got %d snapshot publishes; every cycle publishes state", len(f.publisher.Snapshots))
	}
}

func TestSetScheduleEnabledTouchesOnlyAffectedDevices(t *testing.T) {
	f := newFixture(t)
	f.coord.RunCycle(context.Background())
	f.commander.Reset()

	if err := f.coord.SetScheduleEnabled("boost", true); err != nil {
		t.Fatalf("enable boost: %v", err)
	}
	f.clock = f.clock.Add(time.Minute)
	f.coord.RunCycle(context.Background())

	// Boost started at 08:00, more recently than Morning's 07:00, so it
	// takes over the living room. The setpoint moves; mode and fan are
	// already in place.
	living := f.commander.CallsFor("living_room")
	if len(living) != 1 || living[0].Verb != "temperature" || living[0].Value != 23 {
		t.Fatalf("living_room calls = %+v, want a single setpoint change to 23", living)
	}
	// The bedroom's target is untouched by the toggle: zero commands.
	if calls := f.commander.CallsFor("bedroom"); len(calls) != 0 {
		t.Errorf("bedroom calls = %+v, want none", calls)
	}
}

func TestSetScheduleEnabledByNameCaseInsensitive(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.SetScheduleEnabled("bOOst", true); err != nil {
		t.Fatalf("toggle by name: %v", err)
	}
	for _, s := range f.coord.Schedules() {
		if s.ID == "boost" && !s.Enabled {
			t.Error("boost should be enabled")
		}
	}
}

func TestSetScheduleEnabledUnknown(t *testing.T) {
	f := newFixture(t)
	err := f.coord.SetScheduleEnabled("nonexistent", true)
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("err = %v, want ErrScheduleNotFound", err)
	}
}

func TestSetScheduleEnabledNoOp(t *testing.T) {
	f := newFixture(t)
	f.coord.RunCycle(context.Background())
	f.commander.Reset()

	// Morning is already enabled; the request must not force a dispatch.
	if err := f.coord.SetScheduleEnabled("Morning", true); err != nil {
		t.Fatalf("no-op toggle: %v", err)
	}
	f.clock = f.clock.Add(time.Minute)
	f.coord.RunCycle(context.Background())

	st := f.tracker.Snapshot()
	if st.Counters.Transitions != 1 {
		t.Errorf("transitions = %d, want 1; no-op toggles must stay quiet", st.Counters.Transitions)
	}
}

func TestForceRefreshDispatchesWithoutRedundantCommands(t *testing.T) {
	f := newFixture(t)
	f.coord.RunCycle(context.Background())
	f.commander.Reset()

	f.coord.ForceRefresh()
	f.clock = f.clock.Add(time.Minute)
	f.coord.RunCycle(context.Background())

	st := f.tracker.Snapshot()
	if st.Counters.Transitions != 2 {
		t.Errorf("transitions = %d, want 2 after a forced refresh", st.Counters.Transitions)
	}
	// Devices already hold their targets; the dispatcher re-checks and
	// sends nothing.
	if len(f.commander.Calls) != 0 {
		t.Errorf("forced refresh re-sent commands: %+v", f.commander.Calls)
	}
}

func TestRunCyclePresenceFlip(t *testing.T) {
	f := newFixture(t)
	f.coord.RunCycle(context.Background())
	f.commander.Reset()

	f.sensors.trackers = map[string]bool{"person/alice": false}
	f.clock = f.clock.Add(time.Minute)
	snap := f.coord.RunCycle(context.Background())

	if snap.AnyoneHome {
		t.Error("nobody home after the tracker flip")
	}
	st := f.tracker.Snapshot()
	if st.Counters.Transitions != 2 {
		t.Errorf("transitions = %d, want 2; presence flips dispatch", st.Counters.Transitions)
	}
}
