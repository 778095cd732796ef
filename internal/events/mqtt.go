package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	disconnectWait = 250
)

// MQTTOptions configures the MQTT publisher.
type MQTTOptions struct {
	BrokerURL string
	ClientID  string
	Topic     string
	QoS       byte
}

// mqttClient is the part of mqtt.Client the publisher uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes delivery summaries as JSON to a broker topic.
type MQTT struct {
	client mqttClient
	topic  string
	qos    byte
	log    *slog.Logger
}

// NewMQTT connects to the broker. The client reconnects on its own after
// the initial connection succeeds.
func NewMQTT(opts MQTTOptions, log *slog.Logger) (*MQTT, error) {
	if opts.BrokerURL == "" {
		return nil, errors.New("mqtt broker url is required")
	}
	if opts.Topic == "" {
		return nil, errors.New("mqtt topic is required")
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(opts.BrokerURL)
	o.SetClientID(opts.ClientID)
	o.SetAutoReconnect(true)
	o.SetConnectTimeout(connectTimeout)
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})
	c := mqtt.NewClient(o)

	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connecting to mqtt broker %s: timed out", opts.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", opts.BrokerURL, err)
	}
	log.Info("connected to mqtt broker", "broker", opts.BrokerURL, "topic", opts.Topic)
	return newMQTT(c, opts, log), nil
}

func newMQTT(c mqttClient, opts MQTTOptions, log *slog.Logger) *MQTT {
	return &MQTT{client: c, topic: opts.Topic, qos: opts.QoS, log: log}
}

// Publish sends d and waits for the broker acknowledgement or ctx.
func (m *MQTT) Publish(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding delivery event: %w", err)
	}

	token := m.client.Publish(m.topic, m.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publishing delivery event: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing delivery event: %w", err)
	}
	m.log.Debug("delivery event published", "topic", m.topic, "delivery_id", d.ID)
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(disconnectWait)
}
