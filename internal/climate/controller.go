package climate

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/emavap/heating-control/internal/logic"
)

// Default settle delays after a physical mode change: device firmware needs
// time to stabilize before accepting further commands.
const (
	DefaultSettle      = 5 * time.Second
	DefaultFinalSettle = 2 * time.Second
)

// tempTolerance is the setpoint comparison tolerance; thermostats do not
// resolve finer than this.
const tempTolerance = 0.01

// lastCommand remembers what was last sent to one device. Fields are only
// updated after the corresponding command succeeded, so a failed command
// keeps the mismatch and retries naturally next cycle.
type lastCommand struct {
	mode      logic.HVACMode
	modeKnown bool

	temperature float64
	tempKnown   bool

	fan      string
	fanKnown bool

	modeChangedAt time.Time
}

// Result summarizes one dispatch pass.
type Result struct {
	Sent    int
	Failed  int
	Skipped int
}

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	Settle      time.Duration
	FinalSettle time.Duration

	// Sleep is the cooperative pause used for settle delays. Tests inject
	// a recording fake; the default waits on a timer and honors context
	// cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time

	// OnCommand is an optional per-command hook, called with the verb
	// ("mode", "temperature", "fan") and the outcome. Used for metrics.
	OnCommand func(verb string, success bool)
}

// Controller sequences mode/temperature/fan commands per device and
// remembers the last-sent state so redundant calls are never issued.
// Last-command state lives only in memory and survives schedule toggles;
// it is cleared only when the process restarts.
type Controller struct {
	commander Commander
	devices   map[string]Device
	order     []string
	excluded  map[string]bool

	settle      time.Duration
	finalSettle time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	onCommand   func(verb string, success bool)

	last map[string]*lastCommand
	log  zerolog.Logger
}

// NewController creates a dispatcher over the given managed devices, in
// the order they are listed. Excluded devices are never commanded even
// when a schedule resolves a target for them.
func NewController(commander Commander, devices []Device, excluded []string, log zerolog.Logger, opts Options) *Controller {
	if opts.Settle == 0 {
		opts.Settle = DefaultSettle
	}
	if opts.FinalSettle == 0 {
		opts.FinalSettle = DefaultFinalSettle
	}
	if opts.Sleep == nil {
		opts.Sleep = waitFor
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OnCommand == nil {
		opts.OnCommand = func(string, bool) {}
	}

	byID := make(map[string]Device, len(devices))
	order := make([]string, 0, len(devices))
	for _, d := range devices {
		byID[d.ID] = d
		order = append(order, d.ID)
	}
	ex := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		ex[id] = true
	}

	return &Controller{
		commander:   commander,
		devices:     byID,
		order:       order,
		excluded:    ex,
		settle:      opts.Settle,
		finalSettle: opts.FinalSettle,
		sleep:       opts.Sleep,
		now:         opts.Now,
		onCommand:   opts.OnCommand,
		last:        make(map[string]*lastCommand),
		log:         log.With().Str("component", "climate").Logger(),
	}
}

// Apply moves every device with a resolved target from its last commanded
// state to the new one, iterating devices in stable configuration order.
// A failure on one device never prevents processing of the rest, and
// decision errors never reach back into the snapshot.
func (c *Controller) Apply(ctx context.Context, snap *logic.Snapshot) Result {
	var res Result
	for _, id := range c.order {
		dec, ok := snap.Devices[id]
		if !ok || !dec.Scheduled {
			// No schedule targets this device: leave it exactly as-is.
			res.Skipped++
			continue
		}
		if c.excluded[id] {
			c.log.Debug().Str("device", id).Msg("device excluded from automatic control")
			res.Skipped++
			continue
		}
		if ctx.Err() != nil {
			return res
		}
		sent, failed := c.applyDevice(ctx, dec)
		res.Sent += sent
		res.Failed += failed
	}
	return res
}

// applyDevice runs the per-device state machine: mode, settle, temperature,
// fan, final settle. A failed mode change aborts the rest of this device's
// pass since the settle ordering can no longer be honored; the stale
// last-command entry makes the next cycle retry.
func (c *Controller) applyDevice(ctx context.Context, dec logic.DeviceDecision) (sent, failed int) {
	last := c.last[dec.Device]
	if last == nil {
		last = &lastCommand{}
		c.last[dec.Device] = last
	}

	modeChanged := false
	if !last.modeKnown || last.mode != dec.Mode {
		if err := c.commander.SetMode(ctx, dec.Device, dec.Mode); err != nil {
			c.log.Error().Err(err).Str("device", dec.Device).Str("mode", string(dec.Mode)).Msg("set mode failed")
			c.onCommand("mode", false)
			return sent, failed + 1
		}
		c.onCommand("mode", true)
		c.log.Info().Str("device", dec.Device).Str("mode", string(dec.Mode)).Str("schedule", dec.WinningSchedule).Msg("mode changed")
		last.mode = dec.Mode
		last.modeKnown = true
		last.modeChangedAt = c.now()
		modeChanged = true
		sent++
		if err := c.sleep(ctx, c.settle); err != nil {
			return sent, failed
		}
	}

	// Temperature is re-sent even when the mode did not change: a schedule
	// transition may only move the setpoint.
	if !last.tempKnown || math.Abs(last.temperature-dec.Temperature) > tempTolerance {
		if err := c.commander.SetTemperature(ctx, dec.Device, dec.Temperature); err != nil {
			c.log.Error().Err(err).Str("device", dec.Device).Float64("temperature", dec.Temperature).Msg("set temperature failed")
			c.onCommand("temperature", false)
			failed++
		} else {
			c.onCommand("temperature", true)
			c.log.Info().Str("device", dec.Device).Float64("temperature", dec.Temperature).Msg("temperature set")
			last.temperature = dec.Temperature
			last.tempKnown = true
			sent++
		}
	}

	if dec.FanMode != "" && (!last.fanKnown || last.fan != dec.FanMode) {
		if c.devices[dec.Device].SupportsFan(dec.FanMode) {
			if err := c.commander.SetFanMode(ctx, dec.Device, dec.FanMode); err != nil {
				c.log.Error().Err(err).Str("device", dec.Device).Str("fan", dec.FanMode).Msg("set fan mode failed")
				c.onCommand("fan", false)
				failed++
			} else {
				c.onCommand("fan", true)
				c.log.Info().Str("device", dec.Device).Str("fan", dec.FanMode).Msg("fan mode set")
				last.fan = dec.FanMode
				last.fanKnown = true
				sent++
			}
		} else {
			c.log.Debug().Str("device", dec.Device).Str("fan", dec.FanMode).Msg("fan mode unsupported, skipping")
		}
	}

	if modeChanged {
		if err := c.sleep(ctx, c.finalSettle); err != nil {
			return sent, failed
		}
	}
	return sent, failed
}

// LastMode reports the last successfully commanded mode for a device.
func (c *Controller) LastMode(device string) (logic.HVACMode, bool) {
	last := c.last[device]
	if last == nil || !last.modeKnown {
		return "", false
	}
	return last.mode, true
}

// waitFor is a cancellation-safe timer wait, never a busy sleep.
func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
