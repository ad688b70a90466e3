package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lisuiheng/opsfeed/logger"
	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <json>",
		Short: "Send one JSON payload over the channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[0])) {
				return errors.New("payload is not valid JSON")
			}
			cfg, err := setup()
			if err != nil {
				return err
			}

			chCfg := cfg.ChannelConfig()
			chCfg.Logger = logger.Logger()
			channel, err := waitConnected(cmd.Context(), timeout, chCfg)
			if err != nil {
				return err
			}
			defer channel.Close()

			if !channel.Send(json.RawMessage(args[0])) {
				return errors.New("send failed: channel not connected")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the connection")
	return cmd
}
