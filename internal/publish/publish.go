// Package publish mirrors recorder status changes onto an MQTT topic so other
// devices on the network can follow the current classification.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/tunnel.report/internal/monitoring"
	"github.com/banshee-data/tunnel.report/internal/recording"
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// message within the publish timeout.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

const (
	defaultTimeout = 2 * time.Second
	quiesceMillis  = 250
)

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher writes status updates as retained JSON messages.
type Publisher struct {
	client  Client
	topic   string
	qos     byte
	timeout time.Duration
}

// New wraps an already connected client.
func New(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, timeout: defaultTimeout}
}

// Connect dials the broker and returns a publisher for topic.
func Connect(broker, clientID, topic string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, token.Error())
	}
	monitoring.Logf("[Publish] connected to %s, topic %s", broker, topic)
	return New(client, topic), nil
}

// Topic returns the topic messages are published to.
func (p *Publisher) Topic() string { return p.topic }

// Publish sends one update and waits for the broker.
func (p *Publisher) Publish(u recording.StatusUpdate) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode status update: %w", err)
	}
	token := p.client.Publish(p.topic, p.qos, true, payload)
	if !token.WaitTimeout(p.timeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

// Run publishes updates until ctx is cancelled or updates is closed. Publish
// failures are logged and do not stop the loop.
func (p *Publisher) Run(ctx context.Context, updates <-chan recording.StatusUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := p.Publish(u); err != nil {
				monitoring.Logf("[Publish] failed to publish %s: %v", u.Status, err)
				continue
			}
			monitoring.Debugf("[Publish] %s -> %s on %s", u.Previous, u.Status, p.topic)
		}
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(quiesceMillis)
}
