package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bat_weather/internal/config"
	"github.com/relabs-tech/bat_weather/internal/snapshot"
)

const mqttConnectWait = 5 * time.Second

// ErrPublishTimeout is returned when the broker did not acknowledge a
// publish within the configured bound.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// mqttClient is the part of mqtt.Client the publisher uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends every snapshot to the broker as a retained data object
// plus a retained status line.
type Publisher struct {
	client      mqttClient
	snapTopic   string
	statusTopic string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewPublisher wraps an already connected client.
func NewPublisher(client mqttClient, snapTopic, statusTopic string, timeout time.Duration, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:      client,
		snapTopic:   snapTopic,
		statusTopic: statusTopic,
		timeout:     timeout,
		logger:      logger,
	}
}

// ConnectPublisher connects to the configured broker. The client keeps
// retrying in the background when the broker is not reachable at boot.
func ConnectPublisher(cfg *config.Config, logger *slog.Logger) (*Publisher, func(), error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDStation).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("connected to mqtt broker", "broker", cfg.MQTTBroker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("lost connection to mqtt broker", "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectWait) {
		logger.Warn("mqtt broker not reachable yet, retrying in background", "broker", cfg.MQTTBroker)
	} else if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("mqtt connect %s: %w", cfg.MQTTBroker, err)
	}

	p := NewPublisher(client, cfg.TopicSnapshot, cfg.TopicStatus, cfg.MQTTPublishTimeout, logger)
	return p, func() { client.Disconnect(250) }, nil
}

// Export publishes the data object and the status line. Each publish
// waits at most the configured timeout.
func (p *Publisher) Export(s snapshot.Snapshot, status string) error {
	payload, err := json.Marshal(s.Data())
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	if err := p.publish(p.snapTopic, payload); err != nil {
		return err
	}
	return p.publish(p.statusTopic, []byte(status))
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("%s: %w", topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}
