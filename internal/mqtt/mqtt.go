// Package mqtt connects the daemon to the automation platform's broker:
// outbound climate commands and state snapshots, inbound sensor readings
// and control triggers. Everything is abstracted behind small interfaces
// so the rest of the daemon is testable with fakes.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// Topic layout under the configured base topic.
const (
	// TopicState carries the latest decision snapshot, retained.
	TopicState = "state"
	// TopicSystem carries lifecycle events (STARTUP, SHUTDOWN), retained.
	TopicSystem = "system"
	// TopicScheduleSet receives set-schedule-enabled commands.
	TopicScheduleSet = "schedule/set"
	// TopicRefresh receives force-refresh requests.
	TopicRefresh = "refresh"
)

// DeviceCommandTopic builds the command topic for one device verb.
// Verbs follow the platform's climate convention: "mode", "temperature",
// "fan_mode".
func DeviceCommandTopic(base, device, verb string) string {
	return fmt.Sprintf("%s/device/%s/%s/set", base, device, verb)
}

// Publisher publishes daemon state to the broker.
type Publisher interface {
	// PublishSnapshot sends the latest decision snapshot, retained so
	// late subscribers see the current state immediately.
	PublishSnapshot(payload []byte) error

	// PublishSystem sends a lifecycle event.
	PublishSystem(event SystemEvent) error

	Close() error
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a lifecycle event (startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // "STARTUP", "SHUTDOWN"
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // pre-formatted status snapshot; used verbatim when set
	Retained   bool
}

// SystemPayload is the JSON envelope for simple system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// ScheduleCommand is the inbound payload on the schedule/set topic.
// Schedule matches by id first, then case-insensitively by name.
type ScheduleCommand struct {
	Schedule string `json:"schedule"`
	Enabled  bool   `json:"enabled"`
}

// ParseScheduleCommand decodes an inbound set-schedule-enabled payload.
func ParseScheduleCommand(payload []byte) (ScheduleCommand, error) {
	var cmd ScheduleCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return ScheduleCommand{}, fmt.Errorf("parse schedule command: %w", err)
	}
	if cmd.Schedule == "" {
		return ScheduleCommand{}, fmt.Errorf("parse schedule command: missing schedule")
	}
	return cmd, nil
}

// Triggers are the inbound control callbacks wired by the coordinator.
type Triggers struct {
	// SetScheduleEnabled toggles a schedule by id or name.
	SetScheduleEnabled func(ref string, enabled bool) error
	// ForceRefresh requests command re-application on the next cycle.
	ForceRefresh func()
}
