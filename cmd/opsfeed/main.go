package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lisuiheng/opsfeed/core"
	"github.com/lisuiheng/opsfeed/logger"
	"github.com/lisuiheng/opsfeed/pkg/interfaces"
	"github.com/lisuiheng/opsfeed/relay"
)

func main() {
	configPath := flag.String("c", "", "Path to config file (default searches ./config.yaml, ./config/config.yaml, /etc/opsfeed/config.yaml)")
	debug := flag.Bool("debug", false, "Force debug logging to stdout")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if err := initLogger(cfg, *debug); err != nil {
		logger.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer logger.Info("Shutting down opsfeed")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fanout, err := newFanout(cfg, logger.Logger())
	if err != nil {
		logger.Error("Failed to create relay", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := fanout.Close(); err != nil {
			logger.Error("Failed to close relay sinks", "error", err)
		}
	}()
	go fanout.Run(ctx)

	chCfg := cfg.ChannelConfig()
	chCfg.Logger = logger.Logger()
	chCfg.OnOpen = func() {
		logger.Info("Feed online")
	}
	chCfg.OnClose = func(ev *interfaces.CloseEvent) {
		logger.Warn("Feed offline", "close", ev.String())
	}
	chCfg.OnError = func(err error) {
		logger.Warn("Feed error", "error", err)
	}
	chCfg.OnMessage = func(msg core.InboundMessage) {
		logger.Info("Alert received", "id", msg.ID, "severity", msg.Severity, "title", msg.Title)
		fanout.Enqueue(msg)
	}

	channel, err := core.Open(ctx, chCfg)
	if err != nil {
		logger.Error("Failed to open channel", "error", err)
		os.Exit(1)
	}
	logger.Info("Starting opsfeed", "endpoint", cfg.Channel.Endpoint, "channel", channel.ID())

	<-ctx.Done()
	logger.Info("Received signal, shutting down")

	_ = channel.Close()
	<-channel.Done()

	st := channel.Status()
	rs := fanout.Stats()
	logger.Info("Service shutdown completed",
		"history", st.HistoryLen,
		"discarded", st.Discarded,
		"relayed", rs.Published,
		"relay_failed", rs.Failed,
		"relay_dropped", rs.Dropped)
}

// initLogger configures the global logger from the logging section.
func initLogger(cfg core.Config, debug bool) error {
	logCfg := logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: cfg.Logging.Outputs,
	}
	if debug {
		logCfg.Level = "debug"
		logCfg.Outputs = []string{"stdout"}
	}
	return logger.Init(logCfg)
}

// newFanout builds a relay with every sink that has a broker configured.
func newFanout(cfg core.Config, log *slog.Logger) (*relay.Fanout, error) {
	var sinks []relay.Sink

	if len(cfg.Relay.Kafka.Brokers) > 0 {
		sink, err := relay.NewKafkaSink(relay.KafkaConfig{
			Brokers: cfg.Relay.Kafka.Brokers,
			Topic:   cfg.Relay.Kafka.Topic,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	if cfg.Relay.MQTT.Broker != "" {
		m := cfg.Relay.MQTT
		sink, err := relay.NewMQTTSink(relay.MQTTConfig{
			Broker:      m.Broker,
			ClientID:    m.ClientID,
			Username:    m.Username,
			Password:    m.Password,
			TopicPrefix: m.TopicPrefix,
			QoS:         m.QoS,
			Retained:    m.Retained,
		}, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	for _, s := range sinks {
		log.Info("Relay sink enabled", "sink", s.Name())
	}
	return relay.NewFanout(relay.FanoutConfig{
		QueueSize:      cfg.Relay.QueueSize,
		PublishTimeout: cfg.Relay.PublishTimeout,
		Logger:         log,
	}, sinks...), nil
}
