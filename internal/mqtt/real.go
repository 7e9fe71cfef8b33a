package mqtt

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/emavap/heating-control/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures the broker client.
type Options struct {
	Broker    string
	ClientID  string
	BaseTopic string
	Username  string
	Password  string

	// Trackers and OutdoorSensor are absolute topics to subscribe to.
	Trackers      []string
	OutdoorSensor string

	Logger zerolog.Logger
}

// Client is the real broker client. It feeds the StateStore from sensor
// subscriptions, publishes snapshots and system events, and implements
// the dispatcher's Commander interface by publishing device commands.
type Client struct {
	client paho.Client
	base   string
	store  *StateStore
	log    zerolog.Logger

	mu       sync.Mutex
	opts     Options
	triggers Triggers
}

// NewClient connects to the broker and subscribes to the sensor topics.
// Trigger topics are subscribed once BindTriggers is called.
func NewClient(opts Options) (*Client, error) {
	c := &Client{
		base:  opts.BaseTopic,
		store: NewStateStore(),
		log:   opts.Logger.With().Str("component", "mqtt").Logger(),
		opts:  opts,
	}

	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(client paho.Client) {
			if err := c.subscribe(); err != nil {
				c.log.Error().Err(err).Msg("subscribe failed")
			}
		})
	if opts.Username != "" {
		pahoOpts.SetUsername(opts.Username).SetPassword(opts.Password)
	}

	c.client = paho.NewClient(pahoOpts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to broker: timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return c, nil
}

// BindTriggers wires the inbound control callbacks and subscribes their
// topics. Called once after the coordinator exists.
func (c *Client) BindTriggers(triggers Triggers) {
	c.mu.Lock()
	c.triggers = triggers
	c.mu.Unlock()
	if err := c.subscribeTriggers(); err != nil {
		c.log.Error().Err(err).Msg("trigger subscribe failed")
	}
}

// subscribe wires sensor and trigger topics. Runs on every (re)connect
// since subscriptions are not retained across sessions.
func (c *Client) subscribe() error {
	for _, topic := range c.opts.Trackers {
		topic := topic
		if err := c.sub(topic, func(_ paho.Client, msg paho.Message) {
			c.store.HandleTracker(topic, msg.Payload())
		}); err != nil {
			return err
		}
	}

	if c.opts.OutdoorSensor != "" {
		if err := c.sub(c.opts.OutdoorSensor, func(_ paho.Client, msg paho.Message) {
			c.store.HandleOutdoor(msg.Payload())
		}); err != nil {
			return err
		}
	}

	return c.subscribeTriggers()
}

func (c *Client) subscribeTriggers() error {
	c.mu.Lock()
	triggers := c.triggers
	c.mu.Unlock()

	if triggers.SetScheduleEnabled != nil {
		if err := c.sub(c.base+"/"+TopicScheduleSet, func(_ paho.Client, msg paho.Message) {
			cmd, err := ParseScheduleCommand(msg.Payload())
			if err != nil {
				c.log.Warn().Err(err).Msg("bad schedule command")
				return
			}
			if err := triggers.SetScheduleEnabled(cmd.Schedule, cmd.Enabled); err != nil {
				c.log.Warn().Err(err).Str("schedule", cmd.Schedule).Msg("set schedule enabled failed")
			}
		}); err != nil {
			return err
		}
	}

	if triggers.ForceRefresh != nil {
		if err := c.sub(c.base+"/"+TopicRefresh, func(_ paho.Client, _ paho.Message) {
			triggers.ForceRefresh()
		}); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) sub(topic string, handler paho.MessageHandler) error {
	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Store exposes the sensor state store for the coordinator.
func (c *Client) Store() *StateStore {
	return c.store
}

// publish sends one message and waits for broker acknowledgement.
func (c *Client) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// command publishes one device command, honoring context cancellation.
func (c *Client) command(ctx context.Context, device, verb string, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// QoS 1: a lost command would leave the device in the wrong state
	// until the next transition.
	return c.publish(DeviceCommandTopic(c.base, device, verb), 1, false, []byte(payload))
}

// SetMode implements climate.Commander.
func (c *Client) SetMode(ctx context.Context, device string, mode logic.HVACMode) error {
	return c.command(ctx, device, "mode", string(mode))
}

// SetTemperature implements climate.Commander.
func (c *Client) SetTemperature(ctx context.Context, device string, value float64) error {
	return c.command(ctx, device, "temperature", strconv.FormatFloat(value, 'f', 1, 64))
}

// SetFanMode implements climate.Commander.
func (c *Client) SetFanMode(ctx context.Context, device string, mode string) error {
	return c.command(ctx, device, "fan_mode", mode)
}

// PublishSnapshot sends the latest decision snapshot, retained.
func (c *Client) PublishSnapshot(payload []byte) error {
	return c.publish(c.base+"/"+TopicState, 0, true, payload)
}

// PublishSystem sends a lifecycle event. QoS 1: shutdown events should
// survive a flaky link.
func (c *Client) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.publish(c.base+"/"+TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports broker connection state.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(1000)
	return nil
}
