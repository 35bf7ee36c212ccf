package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"droneops-mission/internal/command"
	"droneops-mission/internal/logging"
	"droneops-mission/internal/mission"
)

var (
	sendURL   string
	sendPlan  string
	sendRetry bool
)

var sendCmd = &cobra.Command{
	Use:   "send <vehicle> <launch|mission|land|rtl|ack>",
	Short: "Send a command to a vehicle's command server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, verb := args[0], args[1]
		ctx := commandLogger(cmd)
		addrs := map[string]string{id: sendURL}
		if sendURL == "" {
			_, cancel, cfg, err := setup(cmd, false)
			if err != nil {
				return err
			}
			cancel()
			addrs = cfg.Addrs()
		}
		client := command.NewClient(addrs, &http.Client{Timeout: 10 * time.Second})

		var sender command.Sender = client
		if sendRetry {
			sender = command.NewRetryingSender(client, command.DefaultRetryPolicy, func(attempt int, err error, wait time.Duration) {
				logging.FromContext(ctx).Warn("command failed, retrying", "attempt", attempt, "wait", wait, "err", err)
			})
		}

		var err error
		switch verb {
		case "launch":
			err = sender.Launch(ctx, id)
		case "mission":
			err = sendMission(ctx, sender, id)
		case "land":
			err = client.Land(ctx, id)
		case "rtl":
			err = client.ReturnToLaunch(ctx, id)
		case "ack":
			err = client.Ack(ctx, id)
		default:
			return fmt.Errorf("unknown command %q", verb)
		}
		if err != nil {
			return err
		}
		logging.FromContext(ctx).Info("command accepted", "vehicle_id", id, "command", verb)
		return nil
	},
}

func sendMission(ctx context.Context, sender command.Sender, id string) error {
	if sendPlan == "" {
		return fmt.Errorf("mission needs --plan")
	}
	plan, err := mission.LoadFile(sendPlan)
	if err != nil {
		return err
	}
	return sender.SendMission(ctx, id, plan)
}

func init() {
	sendCmd.Flags().StringVar(&sendURL, "url", "", "Command server base URL (defaults to the vehicle's configured url)")
	sendCmd.Flags().StringVar(&sendPlan, "plan", "", "Plan JSON file for the mission command")
	sendCmd.Flags().BoolVar(&sendRetry, "retry", false, "Retry launch and mission delivery with backoff")
}
