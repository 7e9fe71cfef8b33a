package status

import (
	"encoding/json"
	"time"

	"github.com/emavap/heating-control/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Ready         bool          `json:"ready"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counters      CountersJSON  `json:"counters"`
	Decision      *DecisionJSON `json:"decision,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports broker connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountersJSON is the JSON representation of cycle counters.
type CountersJSON struct {
	Cycles         int `json:"cycles"`
	Transitions    int `json:"transitions"`
	CommandsSent   int `json:"commands_sent"`
	CommandsFailed int `json:"commands_failed"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	UpdateIntervalMs int64  `json:"update_interval_ms"`
	SettleMs         int64  `json:"settle_ms"`
	FinalSettleMs    int64  `json:"final_settle_ms"`
	Broker           string `json:"broker"`
	BaseTopic        string `json:"base_topic"`
	HTTPAddr         string `json:"http_addr"`
}

// DecisionJSON is the JSON representation of one decision snapshot.
type DecisionJSON struct {
	AnyoneHome   bool                   `json:"anyone_home"`
	BothAway     bool                   `json:"both_away"`
	OutdoorClass string                 `json:"outdoor_class"`
	Schedules    []ScheduleDecisionJSON `json:"schedules"`
	Devices      map[string]DeviceJSON  `json:"devices"`
	Diagnostics  DiagnosticsJSON        `json:"diagnostics"`
}

// ScheduleDecisionJSON is the JSON representation of one schedule decision.
type ScheduleDecisionJSON struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Enabled      bool     `json:"enabled"`
	Active       bool     `json:"active"`
	InWindow     bool     `json:"in_time_window"`
	PresenceOK   bool     `json:"presence_ok"`
	TempOK       bool     `json:"temp_condition_ok"`
	Away         bool     `json:"away,omitempty"`
	Start        string   `json:"start"`
	EffectiveEnd string   `json:"effective_end"`
	EndDerived   bool     `json:"end_derived"`
	Mode         string   `json:"mode"`
	Temperature  float64  `json:"temperature"`
	FanMode      string   `json:"fan_mode"`
	Devices      []string `json:"devices"`
}

// DeviceJSON is the JSON representation of one device decision.
type DeviceJSON struct {
	Scheduled       bool    `json:"scheduled"`
	WinningSchedule string  `json:"winning_schedule,omitempty"`
	Mode            string  `json:"mode,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	FanMode         string  `json:"fan_mode,omitempty"`
}

// DiagnosticsJSON is the JSON representation of cycle diagnostics.
type DiagnosticsJSON struct {
	EvaluatedAt       string          `json:"evaluated_at"`
	NowTime           string          `json:"now_time"`
	TrackerStates     map[string]bool `json:"tracker_states"`
	TrackersHome      int             `json:"trackers_home"`
	TrackersTotal     int             `json:"trackers_total"`
	AutomationEnabled bool            `json:"automation_enabled"`
	OutdoorTemp       *float64        `json:"outdoor_temp,omitempty"`
	ScheduleCount     int             `json:"schedule_count"`
	ActiveSchedules   int             `json:"active_schedules"`
	ActiveDevices     int             `json:"active_devices"`
}

func buildDecision(state *logic.Snapshot) *DecisionJSON {
	if state == nil {
		return nil
	}

	schedules := make([]ScheduleDecisionJSON, 0, len(state.Schedules))
	for _, d := range state.Schedules {
		schedules = append(schedules, ScheduleDecisionJSON{
			ID:           d.ScheduleID,
			Name:         d.Name,
			Enabled:      d.Enabled,
			Active:       d.Active,
			InWindow:     d.InWindow,
			PresenceOK:   d.PresenceOK,
			TempOK:       d.TempConditionOK,
			Away:         d.Away,
			Start:        d.Start.String(),
			EffectiveEnd: d.EffectiveEnd.String(),
			EndDerived:   d.EndDerived,
			Mode:         string(d.Mode),
			Temperature:  d.Temperature,
			FanMode:      d.FanMode,
			Devices:      d.Devices,
		})
	}

	devices := make(map[string]DeviceJSON, len(state.Devices))
	for id, d := range state.Devices {
		dj := DeviceJSON{Scheduled: d.Scheduled}
		if d.Scheduled {
			dj.WinningSchedule = d.WinningSchedule
			dj.Mode = string(d.Mode)
			dj.Temperature = d.Temperature
			dj.FanMode = d.FanMode
		}
		devices[id] = dj
	}

	diag := DiagnosticsJSON{
		EvaluatedAt:       state.Diagnostics.EvaluatedAt.UTC().Format(time.RFC3339),
		NowTime:           state.Diagnostics.NowMinute.String(),
		TrackerStates:     state.Diagnostics.TrackerStates,
		TrackersHome:      state.Diagnostics.TrackersHome,
		TrackersTotal:     state.Diagnostics.TrackersTotal,
		AutomationEnabled: state.Diagnostics.AutomationEnabled,
		ScheduleCount:     state.Diagnostics.ScheduleCount,
		ActiveSchedules:   state.Diagnostics.ActiveSchedules,
		ActiveDevices:     state.Diagnostics.ActiveDevices,
	}
	if state.Diagnostics.OutdoorKnown {
		v := state.Diagnostics.OutdoorTemp
		diag.OutdoorTemp = &v
	}

	return &DecisionJSON{
		AnyoneHome:   state.AnyoneHome,
		BothAway:     state.BothAway,
		OutdoorClass: string(state.OutdoorClass),
		Schedules:    schedules,
		Devices:      devices,
		Diagnostics:  diag,
	}
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Ready:         snap.State != nil,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counters: CountersJSON{
			Cycles:         snap.Counters.Cycles,
			Transitions:    snap.Counters.Transitions,
			CommandsSent:   snap.Counters.CommandsSent,
			CommandsFailed: snap.Counters.CommandsFailed,
		},
		Decision: buildDecision(snap.State),
		Config: ConfigJSON{
			UpdateIntervalMs: snap.Config.UpdateIntervalMs,
			SettleMs:         snap.Config.SettleMs,
			FinalSettleMs:    snap.Config.FinalSettleMs,
			Broker:           snap.Config.Broker,
			BaseTopic:        snap.Config.BaseTopic,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
