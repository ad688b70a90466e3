package core

import (
	"io"
	"log/slog"
	"time"

	"github.com/lisuiheng/opsfeed/pkg/interfaces"
	"github.com/lisuiheng/opsfeed/protocols/websocket"
)

// Config is the application configuration (matches config/config.yaml).
type Config struct {
	Channel struct {
		Endpoint        string            `mapstructure:"endpoint"`
		Protocols       []string          `mapstructure:"protocols"`
		Headers         map[string]string `mapstructure:"headers"`
		HistoryCapacity int               `mapstructure:"history_capacity"`
		Backoff         BackoffConfig     `mapstructure:"backoff"`
	} `mapstructure:"channel"`

	Snapshot struct {
		URL           string        `mapstructure:"url"`
		Token         string        `mapstructure:"token"`
		RatePerSecond float64       `mapstructure:"rate_per_second"`
		Timeout       time.Duration `mapstructure:"timeout"`
	} `mapstructure:"snapshot"`

	Relay struct {
		QueueSize      int           `mapstructure:"queue_size"`
		PublishTimeout time.Duration `mapstructure:"publish_timeout"`
		Kafka          struct {
			Brokers []string `mapstructure:"brokers"`
			Topic   string   `mapstructure:"topic"`
		} `mapstructure:"kafka"`
		MQTT struct {
			Broker      string `mapstructure:"broker"`
			ClientID    string `mapstructure:"client_id"`
			Username    string `mapstructure:"username"`
			Password    string `mapstructure:"password"`
			TopicPrefix string `mapstructure:"topic_prefix"`
			QoS         byte   `mapstructure:"qos"`
			Retained    bool   `mapstructure:"retained"`
		} `mapstructure:"mqtt"`
	} `mapstructure:"relay"`

	Logging struct {
		Level   string   `mapstructure:"level"`
		Format  string   `mapstructure:"format"`
		Outputs []string `mapstructure:"outputs"`
	} `mapstructure:"logging"`
}

// BackoffConfig overrides the reconnect delays. Zero values keep the
// defaults (500ms floor, x1.8, 30s cap).
type BackoffConfig struct {
	Initial time.Duration `mapstructure:"initial"`
	Factor  float64       `mapstructure:"factor"`
	Max     time.Duration `mapstructure:"max"`
}

// ChannelConfig is fixed for the lifetime of a Channel. Callbacks run on
// the channel's own goroutine and must not block for long.
type ChannelConfig struct {
	Endpoint        string
	Protocols       []string
	Headers         map[string]string
	HistoryCapacity int
	Backoff         BackoffConfig

	OnOpen    func()
	OnClose   func(ev *interfaces.CloseEvent)
	OnError   func(err error)
	OnMessage func(msg InboundMessage)
	// OnDiscard observes frames dropped by validation. It is diagnostic
	// only; discarded frames never reach history or the other callbacks.
	OnDiscard func(raw []byte, err error)

	Transport interfaces.Factory
	Logger    *slog.Logger
}

// ChannelConfig builds the channel part of the application config.
func (c Config) ChannelConfig() ChannelConfig {
	return ChannelConfig{
		Endpoint:        c.Channel.Endpoint,
		Protocols:       c.Channel.Protocols,
		Headers:         c.Channel.Headers,
		HistoryCapacity: c.Channel.HistoryCapacity,
		Backoff:         c.Channel.Backoff,
	}
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = DefaultHistoryCapacity
	}
	if c.Transport == nil {
		c.Transport = websocket.Factory
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}
