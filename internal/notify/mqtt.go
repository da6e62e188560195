package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTChannel publishes event payloads to an MQTT broker, for SIEM
// pipelines that subscribe rather than listen.
type MQTTChannel struct {
	topic   string
	client  mqtt.Client
	timeout time.Duration
}

// MQTTOption configures the MQTT channel.
type MQTTOption func(*MQTTChannel)

// WithPublishTimeout overrides how long Send waits for the broker ack.
func WithPublishTimeout(d time.Duration) MQTTOption {
	return func(ch *MQTTChannel) {
		if d > 0 {
			ch.timeout = d
		}
	}
}

// NewMQTTChannel constructs an MQTT channel. Connect must be called
// before the first Send.
func NewMQTTChannel(broker, topic, clientID string, opts ...MQTTOption) (*MQTTChannel, error) {
	if broker == "" {
		return nil, errors.New("mqtt channel: empty broker url")
	}
	if topic == "" {
		return nil, errors.New("mqtt channel: empty topic")
	}
	conf := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(10 * time.Second).
		SetConnectTimeout(5 * time.Second)
	channel := &MQTTChannel{
		topic:   topic,
		client:  mqtt.NewClient(conf),
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Connect dials the broker. The client keeps retrying in the
// background, so an unreachable broker delays delivery instead of
// failing startup.
func (m *MQTTChannel) Connect() error {
	token := m.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt channel: connect: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTChannel) Close() {
	if m != nil && m.client != nil {
		m.client.Disconnect(250)
	}
}

// Name implements Channel.
func (m *MQTTChannel) Name() string { return "mqtt" }

// Send publishes the payload at QoS 1.
func (m *MQTTChannel) Send(_ context.Context, payload []byte) error {
	token := m.client.Publish(m.topic, 1, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return errors.New("mqtt channel: publish timed out")
	}
	return token.Error()
}
