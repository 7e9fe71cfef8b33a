// Package coordinator drives the periodic decision cycle: read sensors,
// compute the decision snapshot, detect transitions, dispatch commands,
// publish state. Cycles never overlap; dispatch is awaited to completion,
// settle delays included, before a cycle finishes.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emavap/heating-control/internal/climate"
	"github.com/emavap/heating-control/internal/logic"
	"github.com/emavap/heating-control/internal/metrics"
	"github.com/emavap/heating-control/internal/mqtt"
	"github.com/emavap/heating-control/internal/status"
)

// ErrScheduleNotFound is returned when an external trigger references an
// unknown schedule.
var ErrScheduleNotFound = errors.New("schedule not found")

// Sensors supplies the raw context inputs for one cycle. Implemented by
// the MQTT state store; tests inject fakes.
type Sensors interface {
	TrackerStates() map[string]bool
	Outdoor() (float64, bool)
}

// Settings is the static decision configuration.
type Settings struct {
	Devices           []string
	GlobalTrackers    []string
	ColdThreshold     float64
	AutomationEnabled bool
}

// Coordinator owns the mutable cycle state: the schedule list (mutated
// only by external triggers), the transition detector's last snapshot,
// and the cycle counters. The decision snapshot itself is immutable and
// handed to the dispatcher as a value.
type Coordinator struct {
	mu        sync.Mutex
	schedules []logic.Schedule

	settings   Settings
	sensors    Sensors
	detector   *logic.TransitionDetector
	controller *climate.Controller
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	conn       mqtt.ConnectionStatus
	metrics    *metrics.Metrics

	counters status.Counters
	now      func() time.Time
	log      zerolog.Logger
}

// Options wires a Coordinator. Publisher, ConnectionStatus and Metrics
// are optional; Now defaults to time.Now.
type Options struct {
	Schedules  []logic.Schedule
	Settings   Settings
	Sensors    Sensors
	Controller *climate.Controller
	Tracker    *status.Tracker
	Publisher  mqtt.Publisher
	Conn       mqtt.ConnectionStatus
	Metrics    *metrics.Metrics
	Now        func() time.Time
	Logger     zerolog.Logger
}

// New creates a Coordinator. The first cycle always dispatches (no
// previous snapshot to compare against).
func New(opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		schedules:  opts.Schedules,
		settings:   opts.Settings,
		sensors:    opts.Sensors,
		detector:   logic.NewTransitionDetector(),
		controller: opts.Controller,
		tracker:    opts.Tracker,
		publisher:  opts.Publisher,
		conn:       opts.Conn,
		metrics:    opts.Metrics,
		now:        opts.Now,
		log:        opts.Logger.With().Str("component", "coordinator").Logger(),
	}
}

// Run executes one cycle immediately, then one per tick until the context
// is cancelled. The tick channel is injectable for tests.
func (c *Coordinator) Run(ctx context.Context, tick <-chan time.Time) {
	c.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("coordinator stopped")
			return
		case <-tick:
			c.RunCycle(ctx)
		}
	}
}

// RunCycle executes one full decision cycle and returns the snapshot it
// produced. Decision computation is pure; only dispatch has side effects,
// and only when a transition was detected.
func (c *Coordinator) RunCycle(ctx context.Context) *logic.Snapshot {
	start := c.now()

	c.mu.Lock()
	schedules := make([]logic.Schedule, len(c.schedules))
	copy(schedules, c.schedules)
	c.mu.Unlock()

	outdoor, outdoorKnown := c.sensors.Outdoor()
	snap := logic.Compute(logic.Input{
		Schedules:         schedules,
		Devices:           c.settings.Devices,
		Timestamp:         start,
		GlobalTrackers:    c.settings.GlobalTrackers,
		TrackerStates:     c.sensors.TrackerStates(),
		OutdoorTemp:       outdoor,
		OutdoorKnown:      outdoorKnown,
		ColdThreshold:     c.settings.ColdThreshold,
		AutomationEnabled: c.settings.AutomationEnabled,
	})

	c.mu.Lock()
	changed, reason := c.detector.Detect(snap)
	c.mu.Unlock()

	if changed {
		c.log.Info().Str("reason", reason).Msg("transition detected, applying control decisions")
		res := c.controller.Apply(ctx, snap)
		c.counters.Transitions++
		c.counters.CommandsSent += res.Sent
		c.counters.CommandsFailed += res.Failed
	} else {
		c.log.Debug().Msg("no transitions, skipping control application")
	}

	c.counters.Cycles++
	c.metrics.Cycle(c.now().Sub(start).Seconds(), changed)
	c.metrics.Decision(snap.Diagnostics.ActiveSchedules, snap.Diagnostics.ActiveDevices, snap.AnyoneHome)

	if c.conn != nil {
		c.tracker.SetMQTTConnected(c.conn.IsConnected())
	}
	c.tracker.Update(snap, c.counters)

	if c.publisher != nil {
		payload := status.FormatStatusEvent(c.tracker.Snapshot(), "", "")
		if err := c.publisher.PublishSnapshot(payload); err != nil {
			c.log.Warn().Err(err).Msg("snapshot publish failed")
		}
	}

	return snap
}

// ForceRefresh makes the next cycle dispatch regardless of detected
// changes. A request arriving mid-dispatch does not abort the in-flight
// pass; it is recorded and honored on the next cycle.
func (c *Coordinator) ForceRefresh() {
	c.mu.Lock()
	c.detector.ForceNext()
	c.mu.Unlock()
	c.log.Info().Msg("forced refresh requested")
}

// SetScheduleEnabled toggles a schedule's enabled flag by id, falling
// back to a case-insensitive name match, and requests a forced refresh.
// Only devices whose resolved target actually changes will receive
// commands; last-command state is deliberately left intact.
func (c *Coordinator) SetScheduleEnabled(ref string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i := range c.schedules {
		if c.schedules[i].ID == ref {
			idx = i
			break
		}
	}
	if idx < 0 {
		for i := range c.schedules {
			if strings.EqualFold(c.schedules[i].Name, ref) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrScheduleNotFound, ref)
	}

	s := &c.schedules[idx]
	if s.Enabled == enabled {
		c.log.Debug().Str("schedule", s.Name).Bool("enabled", enabled).Msg("schedule already in requested state")
		return nil
	}
	s.Enabled = enabled
	c.detector.ForceNext()
	c.log.Info().Str("schedule", s.Name).Bool("enabled", enabled).Msg("schedule toggled")
	return nil
}

// Schedules returns a copy of the current schedule list.
func (c *Coordinator) Schedules() []logic.Schedule {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]logic.Schedule, len(c.schedules))
	copy(out, c.schedules)
	return out
}
