// Package mqttpub publishes session events to an MQTT broker as JSON, one
// topic per packet type.
package mqttpub

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tsipmon/internal/monitor"
)

const defaultTimeout = 2 * time.Second

type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Retain      bool
	// Timeout bounds connect and each publish. Zero means 2s.
	Timeout time.Duration
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	c       client
	prefix  string
	qos     byte
	retain  bool
	timeout time.Duration
}

// Connect dials the broker and returns a publisher. The client reconnects on
// its own after a dropped connection.
func Connect(opts Options) (*Publisher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetConnectTimeout(opts.Timeout).
		SetAutoReconnect(true)

	c := mqtt.NewClient(co)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", opts.Broker, token.Error())
	}
	return newPublisher(c, opts), nil
}

func newPublisher(c client, opts Options) *Publisher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Publisher{
		c:       c,
		prefix:  opts.TopicPrefix,
		qos:     opts.QoS,
		retain:  opts.Retain,
		timeout: opts.Timeout,
	}
}

func (p *Publisher) Name() string { return "mqtt" }

// Topic returns the topic ev is published on.
func (p *Publisher) Topic(ev monitor.Event) string {
	if p.prefix == "" {
		return ev.Topic()
	}
	return p.prefix + "/" + ev.Topic()
}

func (p *Publisher) Publish(ev monitor.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", ev.Index, err)
	}
	topic := p.Topic(ev)
	token := p.c.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt publish %s: timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.c.Disconnect(250)
	return nil
}
