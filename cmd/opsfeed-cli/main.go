package main

import (
	"fmt"
	"os"

	"github.com/lisuiheng/opsfeed/core"
	"github.com/lisuiheng/opsfeed/logger"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
	endpoint   string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "opsfeed-cli",
		Short: "Operator CLI for the opsfeed alert channel",
		Long: `opsfeed-cli opens its own resilient channel to the alert feed.
Use watch to stream validated alerts, send to push one payload and
snapshot to read the static fallback feed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Override channel.endpoint (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level written to stderr")

	rootCmd.AddCommand(
		newWatchCmd(),
		newSendCmd(),
		newSnapshotCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config with flag overrides and points the logger at
// stderr so stdout stays machine readable.
func setup() (core.Config, error) {
	var overrides []core.Override
	if endpoint != "" {
		overrides = append(overrides, core.Override{Key: "channel.endpoint", Value: endpoint})
	}

	cfg, err := core.LoadConfig(configPath, overrides...)
	if err != nil {
		return core.Config{}, err
	}
	if err := logger.Init(logger.Config{Level: logLevel, Outputs: []string{"stderr"}}); err != nil {
		return core.Config{}, err
	}
	return cfg, nil
}
