// Package mqttout publishes encoded packets to an MQTT broker, one message per
// packet.
package mqttout

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retained bool
	Timeout  time.Duration
}

// client is the part of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	c       client
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
}

// Connect dials the broker and waits for the session to be established.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("mqtt topic is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "nmea2ubx"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out after %s", cfg.Broker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return newPublisher(c, cfg), nil
}

func newPublisher(c client, cfg Config) *Publisher {
	return &Publisher{c: c, topic: cfg.Topic, qos: cfg.QoS, retain: cfg.Retained, timeout: cfg.Timeout}
}

func (p *Publisher) Name() string { return "mqtt:" + p.topic }

// Send publishes packet as a binary payload. The packet is copied because
// paho may hold the payload after Publish returns.
func (p *Publisher) Send(packet []byte) error {
	payload := append([]byte(nil), packet...)
	token := p.c.Publish(p.topic, p.qos, p.retain, payload)
	if p.qos == 0 {
		return nil
	}
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt publish %s: timed out", p.topic)
	}
	return token.Error()
}

func (p *Publisher) Close() error {
	p.c.Disconnect(250)
	return nil
}
