package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"coteri/internal/transport/httpdto"

	"github.com/spf13/cobra"
)

const replayTokenHeader = "X-Replay-Token"

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [event-id]",
		Short: "Re-fetch a Stripe event by id and run it through the webhook pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			token, _ := cmd.Flags().GetString("token")
			if token == "" {
				token = os.Getenv("REPLAY_TOKEN")
			}
			if token == "" {
				return fmt.Errorf("replay token is required (--token or $REPLAY_TOKEN)")
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			ack, err := postReplay(ctx, http.DefaultClient, url, token, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "event:  %s\n", ack.EventID)
			fmt.Fprintf(out, "status: %s\n", ack.Status)
			if ack.Error != "" {
				fmt.Fprintf(out, "error:  %s\n", ack.Error)
			}
			return nil
		},
	}

	cmd.Flags().String("url", "http://localhost:8080/webhooks/stripe", "Webhook endpoint")
	cmd.Flags().String("token", "", "Replay token (default $REPLAY_TOKEN)")
	cmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")

	return cmd
}

// postReplay sends a replay request. A response without the replay marker
// means the server did not accept the token and treated it as a live delivery.
func postReplay(ctx context.Context, client *http.Client, url, token, eventID string) (httpdto.ReplayAck, error) {
	body, err := json.Marshal(map[string]string{"event_id": eventID})
	if err != nil {
		return httpdto.ReplayAck{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return httpdto.ReplayAck{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(replayTokenHeader, token)

	resp, err := client.Do(req)
	if err != nil {
		return httpdto.ReplayAck{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return httpdto.ReplayAck{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return httpdto.ReplayAck{}, fmt.Errorf("replay failed: %s: %s", resp.Status, bytes.TrimSpace(raw))
	}

	var ack httpdto.ReplayAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return httpdto.ReplayAck{}, fmt.Errorf("decode replay response: %w", err)
	}
	if !ack.Replay {
		return ack, fmt.Errorf("replay token rejected by server")
	}
	return ack, nil
}
