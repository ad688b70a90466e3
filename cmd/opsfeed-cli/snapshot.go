package main

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/lisuiheng/opsfeed/core"
	"github.com/lisuiheng/opsfeed/logger"
	"github.com/lisuiheng/opsfeed/snapshot"
	"github.com/spf13/cobra"
)

// offline stands in for a channel that never connected.
type offline struct{}

func (offline) Connected() bool { return false }
func (offline) History() []core.InboundMessage { return nil }

func newSnapshotCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the current feed view: live history if the channel connects, otherwise the static snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if cfg.Snapshot.URL == "" {
				return errors.New("snapshot.url is not configured")
			}

			client, err := snapshot.NewClient(snapshot.Config{
				URL:           cfg.Snapshot.URL,
				Token:         cfg.Snapshot.Token,
				RatePerSecond: cfg.Snapshot.RatePerSecond,
				Timeout:       cfg.Snapshot.Timeout,
				Logger:        logger.Logger(),
			})
			if err != nil {
				return err
			}

			chCfg := cfg.ChannelConfig()
			chCfg.Logger = logger.Logger()

			var live snapshot.LiveSource = offline{}
			if channel, err := waitConnected(cmd.Context(), wait, chCfg); err == nil {
				defer channel.Close()
				// Give the feed a moment to replay recent alerts.
				time.Sleep(wait / 4)
				live = channel
			} else {
				logger.Warn("Live channel unavailable, using snapshot", "error", err)
			}

			view := snapshot.NewFeed(live, client).View(cmd.Context())
			if view.Err != nil && len(view.Messages) == 0 {
				return view.Err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "How long to try the live channel before falling back")
	return cmd
}
