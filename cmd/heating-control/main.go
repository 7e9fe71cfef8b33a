// Command heating-control evaluates time/condition schedules against live
// presence and outdoor-temperature inputs and drives climate devices over
// MQTT toward the resolved targets.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emavap/heating-control/internal/climate"
	"github.com/emavap/heating-control/internal/config"
	"github.com/emavap/heating-control/internal/coordinator"
	"github.com/emavap/heating-control/internal/logging"
	"github.com/emavap/heating-control/internal/metrics"
	"github.com/emavap/heating-control/internal/mqtt"
	"github.com/emavap/heating-control/internal/status"
	"github.com/emavap/heating-control/internal/web"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "heating-control",
	Short: "Schedule-driven climate device automation",
	Long:  "heating-control runs a periodic control loop that evaluates user-defined schedules against time, presence and outdoor temperature, and drives climate devices over MQTT.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the control loop",
	RunE:  runDaemon,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file and exit",
	RunE:  runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "heating-control.yaml", "path to configuration file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runValidate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok (%d schedules, %d devices)\n", configPath, len(cfg.Schedules), len(cfg.Devices))
	return nil
}

func runDaemon(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat == "console")
	logger.Info().Str("config", configPath).Msg("heating-control starting")

	client, err := mqtt.NewClient(mqtt.Options{
		Broker:        cfg.MQTT.Broker,
		ClientID:      cfg.MQTT.ClientID,
		BaseTopic:     cfg.MQTT.BaseTopic,
		Username:      cfg.MQTT.Username,
		Password:      cfg.MQTT.Password,
		Trackers:      allTrackers(cfg),
		OutdoorSensor: cfg.OutdoorSensor,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	m := metrics.New()

	controller := climate.NewController(client, cfg.BuildDevices(), cfg.ExcludedDevices, logger, climate.Options{
		Settle:      time.Duration(cfg.SettleDelay),
		FinalSettle: time.Duration(cfg.FinalSettleDelay),
		OnCommand:   m.Command,
	})

	tracker := status.NewTracker(time.Now(), status.Config{
		UpdateIntervalMs: time.Duration(cfg.UpdateInterval).Milliseconds(),
		SettleMs:         time.Duration(cfg.SettleDelay).Milliseconds(),
		FinalSettleMs:    time.Duration(cfg.FinalSettleDelay).Milliseconds(),
		Broker:           cfg.MQTT.Broker,
		BaseTopic:        cfg.MQTT.BaseTopic,
		HTTPAddr:         cfg.HTTP.Addr,
	})

	coord := coordinator.New(coordinator.Options{
		Schedules: cfg.BuildSchedules(),
		Settings: coordinator.Settings{
			Devices:           cfg.DeviceIDs(),
			GlobalTrackers:    cfg.Trackers,
			ColdThreshold:     *cfg.ColdThreshold,
			AutomationEnabled: cfg.Automation(),
		},
		Sensors:    client.Store(),
		Controller: controller,
		Tracker:    tracker,
		Publisher:  client,
		Conn:       client,
		Metrics:    m,
		Logger:     logger,
	})

	// Control triggers arrive over MQTT as well as HTTP.
	client.BindTriggers(mqtt.Triggers{
		SetScheduleEnabled: coord.SetScheduleEnabled,
		ForceRefresh:       coord.ForceRefresh,
	})

	publishSystem(client, tracker, logger, "STARTUP", "")

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, coord, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		logger.Info().Str("signal", s.String()).Msg("shutting down")
		publishSystem(client, tracker, logger, "SHUTDOWN", signalName(s))
		cancel()
	}()

	ticker := time.NewTicker(time.Duration(cfg.UpdateInterval))
	defer ticker.Stop()

	logger.Info().
		Dur("interval", time.Duration(cfg.UpdateInterval)).
		Int("schedules", len(cfg.Schedules)).
		Int("devices", len(cfg.Devices)).
		Msg("control loop started")

	coord.Run(ctx, ticker.C)
	return nil
}

// allTrackers collects global and schedule-scoped tracker topics for the
// subscription set, without duplicates.
func allTrackers(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range cfg.Trackers {
		add(t)
	}
	for _, s := range cfg.Schedules {
		for _, t := range s.Trackers {
			add(t)
		}
	}
	return out
}

func publishSystem(client *mqtt.Client, tracker *status.Tracker, logger zerolog.Logger, event, reason string) {
	tracker.SetMQTTConnected(client.IsConnected())
	snap := tracker.Snapshot()
	err := client.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		logger.Warn().Err(err).Str("event", event).Msg("system event publish failed")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
