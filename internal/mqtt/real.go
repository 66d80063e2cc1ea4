package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const (
	publishTimeout  = 5 * time.Second
	eventBufferSize = 64
)

// Options configures a RealClient.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string

	Decoder Decoder

	// SystemTopic receives lifecycle events and the offline will. Empty disables both.
	SystemTopic string

	ConnectTimeout time.Duration

	// OnConnectionChange, if set, is called from paho's goroutines when the
	// connection comes up or is lost.
	OnConnectionChange func(connected bool)

	Logger *logrus.Entry
}

// RealClient talks to an actual MQTT broker. Subscriptions are made from the
// connect handler, so every (re)connection re-subscribes and emits an
// EventConnected on Events.
type RealClient struct {
	client paho.Client
	opts   Options
	log    *logrus.Entry

	gate      sync.Mutex
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewRealClient connects to the broker, waiting at most opts.ConnectTimeout
// for the first connection.
func NewRealClient(opts Options) (*RealClient, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "mqtt")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	c := &RealClient{
		opts:   opts,
		log:    opts.Logger,
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.SystemTopic != "" {
		will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
		if err != nil {
			return nil, fmt.Errorf("format will payload: %w", err)
		}
		po.SetBinaryWill(opts.SystemTopic, will, 1, true)
	}

	c.client = paho.NewClient(po)
	token := c.client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: timeout after %v", opts.Broker, opts.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return c, nil
}

// Events returns the inbound event stream. Events are delivered in arrival order.
func (c *RealClient) Events() <-chan Event {
	return c.events
}

func (c *RealClient) onConnect(client paho.Client) {
	c.log.WithField("broker", c.opts.Broker).Info("connected")

	// Hold messages back until EventConnected is queued, so the controller
	// always marks its status probe as pending before it sees a result.
	c.gate.Lock()
	defer c.gate.Unlock()

	filters := map[string]byte{
		c.opts.Decoder.Topics.Telemetry: 1,
		c.opts.Decoder.Topics.Result:    1,
	}
	token := client.SubscribeMultiple(filters, c.onMessage)
	if !token.WaitTimeout(publishTimeout) {
		c.log.Error("subscribe timeout")
	} else if err := token.Error(); err != nil {
		c.log.WithError(err).Error("subscribe failed")
	} else {
		c.log.WithFields(logrus.Fields{
			"telemetry": c.opts.Decoder.Topics.Telemetry,
			"result":    c.opts.Decoder.Topics.Result,
		}).Debug("subscribed")
	}

	if c.opts.OnConnectionChange != nil {
		c.opts.OnConnectionChange(true)
	}
	c.push(Event{Kind: EventConnected})
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.log.WithError(err).Warn("connection lost, reconnecting")
	if c.opts.OnConnectionChange != nil {
		c.opts.OnConnectionChange(false)
	}
}

func (c *RealClient) onMessage(_ paho.Client, msg paho.Message) {
	c.log.WithFields(logrus.Fields{
		"topic":   msg.Topic(),
		"payload": string(msg.Payload()),
	}).Debug("message")

	event, err := c.opts.Decoder.Decode(msg.Topic(), msg.Payload())
	if errors.Is(err, ErrIgnored) {
		return
	}
	c.gate.Lock()
	c.push(event)
	c.gate.Unlock()
}

// push blocks until the controller takes the event or the client closes.
func (c *RealClient) push(event Event) {
	select {
	case c.events <- event:
	case <-c.done:
	}
}

// PowerOn asks the device to switch on.
func (c *RealClient) PowerOn() error {
	return c.command(PayloadOn)
}

// PowerOff asks the device to switch off.
func (c *RealClient) PowerOff() error {
	return c.command(PayloadOff)
}

// QueryPower asks the device to report its power state.
func (c *RealClient) QueryPower() error {
	return c.command(PayloadQuery)
}

// command publishes without waiting for the broker. Errors that are already
// known are returned; later failures are only logged.
func (c *RealClient) command(payload string) error {
	topic := c.opts.Decoder.Topics.Command
	token := c.client.Publish(topic, 1, false, payload)

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		return nil
	default:
	}

	go func() {
		if !token.WaitTimeout(publishTimeout) {
			c.log.WithField("topic", topic).Warn("publish timeout")
			return
		}
		if err := token.Error(); err != nil {
			c.log.WithError(err).WithField("topic", topic).Error("publish failed")
		}
	}()
	return nil
}

// PublishSystem sends a lifecycle event and waits for the broker to take it.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	if c.opts.SystemTopic == "" {
		return nil
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) - we want to ensure delivery
	token := c.client.Publish(c.opts.SystemTopic, 1, event.Retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the client currently has a broker connection.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker. Safe to call more than once.
func (c *RealClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.client.Disconnect(1000) // 1 second timeout
	})
	return nil
}
