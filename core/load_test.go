package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
channel:
  endpoint: wss://bff.example.com/ws/alerts
  protocols: [alerts.v1]
  headers:
    Authorization: Bearer abc
relay:
  kafka:
    brokers: [kafka-1:9092, kafka-2:9092]
logging:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://bff.example.com/ws/alerts", cfg.Channel.Endpoint)
	assert.Equal(t, []string{"alerts.v1"}, cfg.Channel.Protocols)
	assert.Equal(t, 200, cfg.Channel.HistoryCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.Channel.Backoff.Initial)
	assert.InDelta(t, 1.8, cfg.Channel.Backoff.Factor, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Channel.Backoff.Max)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Relay.Kafka.Brokers)
	assert.Equal(t, "opsfeed.alerts", cfg.Relay.Kafka.Topic)
	assert.Equal(t, byte(1), cfg.Relay.MQTT.QoS)
	assert.Equal(t, 5*time.Second, cfg.Snapshot.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)

	cc := cfg.ChannelConfig()
	assert.Equal(t, cfg.Channel.Endpoint, cc.Endpoint)
	assert.Equal(t, 200, cc.HistoryCapacity)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "channel:\n  endpoint: ws://file/ws\n")
	t.Setenv("OPSFEED_CHANNEL_ENDPOINT", "ws://env/ws")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://env/ws", cfg.Channel.Endpoint)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, "channel:\n  endpoint: ws://file/ws\n")

	cfg, err := LoadConfig(path,
		Override{Key: "channel.endpoint", Value: "ws://flag/ws"},
		Override{Key: "logging.level", Value: "warn"})
	require.NoError(t, err)
	assert.Equal(t, "ws://flag/ws", cfg.Channel.Endpoint)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "logging:\n  level: info\n"))
	assert.ErrorIs(t, err, ErrEndpointRequired)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
