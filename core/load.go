package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads the YAML config at configPath, or searches ./config.yaml,
// ./config/config.yaml and /etc/opsfeed/config.yaml when configPath is
// empty. OPSFEED_* environment variables override file values
// (OPSFEED_CHANNEL_ENDPOINT for channel.endpoint). Overrides win over
// both.
func LoadConfig(configPath string, overrides ...Override) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("opsfeed")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/opsfeed")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for _, o := range overrides {
		v.Set(o.Key, o.Value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Channel.Endpoint == "" {
		return Config{}, fmt.Errorf("channel.endpoint: %w", ErrEndpointRequired)
	}
	return cfg, nil
}

// Override sets one config key, typically from a command line flag.
type Override struct {
	Key   string
	Value any
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("channel.endpoint", "")
	v.SetDefault("channel.history_capacity", DefaultHistoryCapacity)
	v.SetDefault("channel.backoff.initial", "500ms")
	v.SetDefault("channel.backoff.factor", 1.8)
	v.SetDefault("channel.backoff.max", "30s")

	v.SetDefault("snapshot.url", "")
	v.SetDefault("snapshot.token", "")
	v.SetDefault("snapshot.rate_per_second", 0.2)
	v.SetDefault("snapshot.timeout", "5s")

	v.SetDefault("relay.queue_size", 256)
	v.SetDefault("relay.publish_timeout", "5s")
	v.SetDefault("relay.kafka.topic", "opsfeed.alerts")
	v.SetDefault("relay.mqtt.broker", "")
	v.SetDefault("relay.mqtt.client_id", "opsfeed")
	v.SetDefault("relay.mqtt.topic_prefix", "opsfeed/alerts")
	v.SetDefault("relay.mqtt.qos", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.outputs", []string{"stdout"})
}
