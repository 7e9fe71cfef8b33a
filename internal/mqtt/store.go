package mqtt

import (
	"strconv"
	"strings"
	"sync"
)

// Presence payloads, following the platform's device_tracker convention.
const (
	payloadHome    = "home"
	payloadNotHome = "not_home"
)

// Payloads a sensor publishes when it cannot produce a reading.
var unavailablePayloads = map[string]bool{
	"":            true,
	"unavailable": true,
	"unknown":     true,
	"none":        true,
}

// StateStore holds the latest sensor readings received from the broker.
// It is the clock/context provider's raw input side: written by the MQTT
// message callbacks, read once per cycle by the coordinator.
type StateStore struct {
	mu           sync.RWMutex
	trackers     map[string]bool
	outdoor      float64
	outdoorKnown bool
}

// NewStateStore creates an empty store. Trackers that have not reported
// yet read as away; the outdoor temperature reads as unknown.
func NewStateStore() *StateStore {
	return &StateStore{trackers: make(map[string]bool)}
}

// SetTracker records a presence reading for one tracker topic.
func (s *StateStore) SetTracker(topic string, home bool) {
	s.mu.Lock()
	s.trackers[topic] = home
	s.mu.Unlock()
}

// SetOutdoor records a valid outdoor temperature reading.
func (s *StateStore) SetOutdoor(value float64) {
	s.mu.Lock()
	s.outdoor = value
	s.outdoorKnown = true
	s.mu.Unlock()
}

// SetOutdoorUnknown marks the outdoor reading unavailable.
func (s *StateStore) SetOutdoorUnknown() {
	s.mu.Lock()
	s.outdoorKnown = false
	s.mu.Unlock()
}

// TrackerStates returns a copy of the current presence readings.
func (s *StateStore) TrackerStates() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.trackers))
	for k, v := range s.trackers {
		out[k] = v
	}
	return out
}

// Outdoor returns the latest outdoor reading and whether it is valid.
func (s *StateStore) Outdoor() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outdoor, s.outdoorKnown
}

// HandleTracker parses a presence payload. Anything other than "home"
// (case-insensitive) counts as away, including unavailable states.
func (s *StateStore) HandleTracker(topic string, payload []byte) {
	state := strings.ToLower(strings.TrimSpace(string(payload)))
	s.SetTracker(topic, state == payloadHome)
}

// HandleOutdoor parses an outdoor temperature payload. Unparsable or
// unavailable payloads mark the reading unknown, never fail.
func (s *StateStore) HandleOutdoor(payload []byte) {
	raw := strings.ToLower(strings.TrimSpace(string(payload)))
	if unavailablePayloads[raw] {
		s.SetOutdoorUnknown()
		return
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.SetOutdoorUnknown()
		return
	}
	s.SetOutdoor(value)
}
