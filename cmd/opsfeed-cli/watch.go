package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lisuiheng/opsfeed/core"
	"github.com/lisuiheng/opsfeed/logger"
	"github.com/lisuiheng/opsfeed/pkg/interfaces"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var severity string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream validated alerts as JSON lines until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if severity != "" && !core.Severity(severity).Valid() {
				return fmt.Errorf("unknown severity %q", severity)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			chCfg := cfg.ChannelConfig()
			chCfg.Logger = logger.Logger()
			chCfg.OnOpen = func() {
				fmt.Fprintln(os.Stderr, "connected")
			}
			chCfg.OnClose = func(ev *interfaces.CloseEvent) {
				fmt.Fprintf(os.Stderr, "disconnected: %s\n", ev)
			}
			chCfg.OnMessage = func(msg core.InboundMessage) {
				if severity != "" && string(msg.Severity) != severity {
					return
				}
				if err := enc.Encode(msg); err != nil {
					logger.Error("Failed to write alert", "error", err)
				}
			}

			channel, err := core.Open(ctx, chCfg)
			if err != nil {
				return err
			}
			<-ctx.Done()
			_ = channel.Close()
			<-channel.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&severity, "severity", "", "Only print alerts of this severity (critical, warning, info)")
	return cmd
}

// waitConnected opens a channel bound to ctx and blocks until its first
// successful open. On timeout the channel is closed.
func waitConnected(ctx context.Context, timeout time.Duration, chCfg core.ChannelConfig) (*core.Channel, error) {
	opened := make(chan struct{}, 1)
	chCfg.OnOpen = func() {
		select {
		case opened <- struct{}{}:
		default:
		}
	}

	channel, err := core.Open(ctx, chCfg)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-opened:
		return channel, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	_ = channel.Close()
	if last := channel.LastError(); last != "" {
		return nil, fmt.Errorf("not connected: %s", last)
	}
	return nil, errors.New("not connected: timed out")
}
