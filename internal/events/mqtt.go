package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig describes the broker connection.
type MQTTConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
	// Topic is the prefix; events go to <Topic>/<event type with dots as slashes>.
	Topic string
}

// Publisher is the subset of an MQTT client used to forward events.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

type pahoPublisher struct {
	client mqtt.Client
}

// NewMQTTClient connects to the broker.
func NewMQTTClient(cfg MQTTConfig) (Publisher, error) {
	broker := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	cli := mqtt.NewClient(opts)
	token := cli.Connect()
	if ok := token.WaitTimeout(10 * time.Second); !ok {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}

	return &pahoPublisher{client: cli}, nil
}

func (p *pahoPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, false, payload)
	if ok := token.WaitTimeout(5 * time.Second); !ok {
		return fmt.Errorf("mqtt publish timeout")
	}
	return token.Error()
}

func (p *pahoPublisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// Forwarder relays hub events to an MQTT broker.
type Forwarder struct {
	hub    *Hub
	pub    Publisher
	prefix string
	logger *zap.Logger
}

// NewForwarder creates a forwarder publishing under prefix.
func NewForwarder(hub *Hub, pub Publisher, prefix string, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{hub: hub, pub: pub, prefix: strings.TrimSuffix(prefix, "/"), logger: logger}
}

// Topic returns the MQTT topic for an event type.
func (f *Forwarder) Topic(eventType string) string {
	return f.prefix + "/" + strings.ReplaceAll(eventType, ".", "/")
}

// Run forwards events until ctx is cancelled.
func (f *Forwarder) Run(ctx context.Context) {
	events, cancel := f.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(e)
			if err != nil {
				f.logger.Warn("marshal event", zap.Error(err))
				continue
			}
			if err := f.pub.Publish(f.Topic(e.Type), payload); err != nil {
				f.logger.Warn("mqtt publish failed",
					zap.String("type", e.Type), zap.Error(err))
			}
		}
	}
}
