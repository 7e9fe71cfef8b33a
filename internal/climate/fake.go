package climate

import (
	"context"
	"fmt"

	"github.com/emavap/heating-control/internal/logic"
)

// Call records a single command issued to the fake commander.
type Call struct {
	Device string
	Verb   string // "mode", "temperature", "fan"
	Mode   logic.HVACMode
	Value  float64
	Fan    string
	// Seq is the global call sequence number, for ordering assertions.
	Seq int
}

// FakeCommander records commands for test assertions and can inject
// failures per device and verb.
type FakeCommander struct {
	Calls []Call

	// FailMode, FailTemperature and FailFan hold device ids whose
	// corresponding verb should return an error.
	FailMode        map[string]bool
	FailTemperature map[string]bool
	FailFan         map[string]bool

	seq int
}

// NewFakeCommander creates a FakeCommander for testing.
func NewFakeCommander() *FakeCommander {
	return &FakeCommander{
		FailMode:        make(map[string]bool),
		FailTemperature: make(map[string]bool),
		FailFan:         make(map[string]bool),
	}
}

// SetMode records a mode command.
func (f *FakeCommander) SetMode(_ context.Context, device string, mode logic.HVACMode) error {
	if f.FailMode[device] {
		return fmt.Errorf("set mode %s: injected failure", device)
	}
	f.seq++
	f.Calls = append(f.Calls, Call{Device: device, Verb: "mode", Mode: mode, Seq: f.seq})
	return nil
}

// SetTemperature records a temperature command.
func (f *FakeCommander) SetTemperature(_ context.Context, device string, value float64) error {
	if f.FailTemperature[device] {
		return fmt.Errorf("set temperature %s: injected failure", device)
	}
	f.seq++
	f.Calls = append(f.Calls, Call{Device: device, Verb: "temperature", Value: value, Seq: f.seq})
	return nil
}

// SetFanMode records a fan command.
func (f *FakeCommander) SetFanMode(_ context.Context, device string, mode string) error {
	if f.FailFan[device] {
		return fmt.Errorf("set fan mode %s: injected failure", device)
	}
	f.seq++
	f.Calls = append(f.Calls, Call{Device: device, Verb: "fan", Fan: mode, Seq: f.seq})
	return nil
}

// CallsFor returns the recorded calls for one device, in order.
func (f *FakeCommander) CallsFor(device string) []Call {
	var out []Call
	for _, c := range f.Calls {
		if c.Device == device {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded calls and injected failures.
func (f *FakeCommander) Reset() {
	f.Calls = nil
	f.FailMode = make(map[string]bool)
	f.FailTemperature = make(map[string]bool)
	f.FailFan = make(map[string]bool)
	f.seq = 0
}
