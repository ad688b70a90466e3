package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/lisuiheng/opsfeed/core"
)

var ErrNoMQTTBroker = errors.New("mqtt broker url is required")

const disconnectQuiesce = 250 // ms

type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retained    bool
}

// MQTTSink publishes each alert to <prefix>/<severity>. The client
// connects and reconnects in the background.
type MQTTSink struct {
	client mqtt.Client
	cfg    MQTTConfig
}

func NewMQTTSink(cfg MQTTConfig, logger *slog.Logger) (*MQTTSink, error) {
	if cfg.Broker == "" {
		return nil, ErrNoMQTTBroker
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "opsfeed"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("MQTT relay connected", "broker", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT relay connection lost", "broker", cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	client.Connect()
	return newMQTTSink(client, cfg), nil
}

func newMQTTSink(client mqtt.Client, cfg MQTTConfig) *MQTTSink {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "opsfeed/alerts"
	}
	return &MQTTSink{client: client, cfg: cfg}
}

func (s *MQTTSink) Name() string { return "mqtt:" + s.cfg.TopicPrefix }

func (s *MQTTSink) Topic(msg core.InboundMessage) string {
	return s.cfg.TopicPrefix + "/" + string(msg.Severity)
}

func (s *MQTTSink) Publish(ctx context.Context, msg core.InboundMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	token := s.client.Publish(s.Topic(msg), s.cfg.QoS, s.cfg.Retained, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(disconnectQuiesce)
	return nil
}
