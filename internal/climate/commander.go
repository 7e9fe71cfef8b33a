// Package climate drives real climate devices toward the targets resolved
// by the decision core. The Controller is the only component that issues
// commands and the only writer of the per-device last-command state.
package climate

import (
	"context"

	"github.com/emavap/heating-control/internal/logic"
)

// Commander issues the three idempotent climate verbs to a device. Each
// call is synchronous: it completes (success or failure) before the
// dispatcher proceeds.
type Commander interface {
	SetMode(ctx context.Context, device string, mode logic.HVACMode) error
	SetTemperature(ctx context.Context, device string, value float64) error
	SetFanMode(ctx context.Context, device string, mode string) error
}

// Device describes one managed climate device and its capability set.
type Device struct {
	ID string
	// FanModes lists the fan modes the device accepts. A fan command for
	// an unlisted mode is skipped silently.
	FanModes []string
}

// SupportsFan reports whether the device accepts the given fan mode.
func (d Device) SupportsFan(mode string) bool {
	for _, m := range d.FanModes {
		if m == mode {
			return true
		}
	}
	return false
}
