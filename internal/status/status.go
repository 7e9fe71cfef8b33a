// Package status provides a thread-safe view of the daemon's latest
// decision state. It is the read-only output boundary of the core: the
// web layer and MQTT snapshot publishing consume it, the coordinator is
// its only writer, and nothing here ever blocks a decision cycle.
package status

import (
	"sync"
	"time"

	"github.com/emavap/heating-control/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	UpdateIntervalMs int64
	SettleMs         int64
	FinalSettleMs    int64
	Broker           string
	BaseTopic        string
	HTTPAddr         string
}

// Counters accumulates cycle statistics since startup.
type Counters struct {
	Cycles         int
	Transitions    int
	CommandsSent   int
	CommandsFailed int
}

// Snapshot is a point-in-time view of daemon state. It is a value type,
// safe to use after the lock is released; the decision snapshot inside is
// immutable by contract.
type Snapshot struct {
	State         *logic.Snapshot
	Counters      Counters
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update publishes a cycle's decision snapshot and counters.
// Called by the coordinator at the end of every cycle.
func (t *Tracker) Update(state *logic.Snapshot, counters Counters) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Counters = counters
	t.mu.Unlock()
}

// SetMQTTConnected sets the broker connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
