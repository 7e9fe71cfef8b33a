package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/emavap/heating-control/internal/logic"
)

func testConfig() Config {
	return Config{
		UpdateIntervalMs: 60000,
		SettleMs:         5000,
		FinalSettleMs:    2000,
		Broker:           "tcp://broker.local:1883",
		BaseTopic:        "heating-control",
		HTTPAddr:         ":8080",
	}
}

func testState() *logic.Snapshot {
	return logic.Compute(logic.Input{
		Schedules: []logic.Schedule{{
			ID:          "morning",
			Name:        "Morning",
			Enabled:     true,
			Start:       7 * 60,
			Mode:        logic.ModeHeat,
			Temperature: 21,
			FanMode:     "auto",
			Devices:     []string{"living_room"},
		}},
		Devices:           []string{"living_room", "bedroom"},
		Timestamp:         time.Date(2026, time.January, 12, 8, 0, 0, 0, time.UTC),
		OutdoorTemp:       4,
		OutdoorKnown:      true,
		ColdThreshold:     15,
		AutomationEnabled: true,
	})
}

func TestTrackerUpdate(t *testing.T) {
	start := time.Date(2026, time.January, 12, 7, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig())

	snap := tr.Snapshot()
	if snap.State != nil {
		t.Error("fresh tracker must have no decision state")
	}
	if snap.StartTime != start {
		t.Errorf("start time = %v", snap.StartTime)
	}

	state := testState()
	tr.Update(state, Counters{Cycles: 3, Transitions: 1, CommandsSent: 2})
	tr.SetMQTTConnected(true)

	snap = tr.Snapshot()
	if snap.State != state {
		t.Error("decision state not carried")
	}
	if snap.Counters.Cycles != 3 || snap.Counters.CommandsSent != 2 {
		t.Errorf("counters = %+v", snap.Counters)
	}
	if !snap.MQTTConnected {
		t.Error("mqtt connected flag not carried")
	}
	if snap.Now.IsZero() {
		t.Error("Snapshot must stamp the current time")
	}
}

func TestFormatJSONNotReady(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())

	var out StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Status.Ready {
		t.Error("status must not be ready before the first cycle")
	}
	if out.Status.Decision != nil {
		t.Error("no decision block before the first cycle")
	}
	if out.Status.Config.Broker != "tcp://broker.local:1883" {
		t.Errorf("config broker = %q", out.Status.Config.Broker)
	}
}

func TestFormatJSONReady(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.Update(testState(), Counters{Cycles: 1, Transitions: 1})

	var out StatusJSON
	if err := json.Unmarshal(FormatJSON(tr.Snapshot()), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Status.Ready || out.Status.Decision == nil {
		t.Fatal("status must be ready with a decision block after a cycle")
	}

	dec := out.Status.Decision
	if dec.OutdoorClass != "cold" || !dec.AnyoneHome {
		t.Errorf("decision = anyone_home=%v class=%s", dec.AnyoneHome, dec.OutdoorClass)
	}
	if len(dec.Schedules) != 1 {
		t.Fatalf("got %d schedules", len(dec.Schedules))
	}
	s := dec.Schedules[0]
	if s.ID != "morning" || !s.Active || s.Start != "07:00" {
		t.Errorf("schedule = %+v", s)
	}
	if !s.EndDerived || s.EffectiveEnd != "07:00" {
		t.Errorf("effective end = %q derived=%v, want derived full-day window", s.EffectiveEnd, s.EndDerived)
	}

	living := dec.Devices["living_room"]
	if !living.Scheduled || living.WinningSchedule != "morning" || living.Temperature != 21 {
		t.Errorf("living_room = %+v", living)
	}
	bedroom := dec.Devices["bedroom"]
	if bedroom.Scheduled || bedroom.WinningSchedule != "" {
		t.Errorf("bedroom = %+v, want the untouched sentinel", bedroom)
	}

	if dec.Diagnostics.OutdoorTemp == nil || *dec.Diagnostics.OutdoorTemp != 4 {
		t.Errorf("outdoor temp = %v", dec.Diagnostics.OutdoorTemp)
	}
	if dec.Diagnostics.NowTime != "08:00" {
		t.Errorf("now_time = %q", dec.Diagnostics.NowTime)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.Update(testState(), Counters{})

	var out StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "STARTUP", ""), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Status.Event != "STARTUP" {
		t.Errorf("event = %q", out.Status.Event)
	}

	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM"), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Status.Event != "SHUTDOWN" || out.Status.Reason != "SIGTERM" {
		t.Errorf("event = %q reason = %q", out.Status.Event, out.Status.Reason)
	}
}
