package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fictionbridge/internal/events"
	"fictionbridge/internal/ipc"
)

const followWait = 25 * time.Second

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow bool
		name   string
		limit  int
		since  uint64
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show worker events buffered by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withClient(func(client *ipc.Client) error {
				if follow {
					// Unblock a pending long-poll on interrupt.
					go func() {
						<-runCtx.Done()
						_ = client.Close()
					}()
				}
				cursor := since
				for {
					req := ipc.EventsRequest{Since: cursor, Limit: limit}
					if follow {
						req.WaitMillis = int(followWait / time.Millisecond)
					}
					resp, err := client.Events(req)
					if err != nil {
						if runCtx.Err() != nil {
							return nil
						}
						return err
					}
					for _, evt := range resp.Events {
						if name != "" && evt.Name != name {
							continue
						}
						if err := printEvent(cmd, evt, asJSON); err != nil {
							return err
						}
					}
					if resp.Next > cursor || len(resp.Events) > 0 {
						cursor = resp.Next
					}
					if !follow || done(runCtx) {
						return nil
					}
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep waiting for new events")
	cmd.Flags().StringVar(&name, "name", "", "Only show events with this name (e.g. pipeline:progress)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events per fetch (0 for all buffered)")
	cmd.Flags().Uint64Var(&since, "since", 0, "Only show events after this sequence number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per event")
	return cmd
}

func printEvent(cmd *cobra.Command, evt events.Event, asJSON bool) error {
	if asJSON {
		return writeJSONLine(cmd, evt)
	}
	payload := strings.TrimSpace(string(evt.Payload))
	if payload == "" {
		payload = "null"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%6d  %s  %-24s %s\n",
		evt.Sequence, evt.Timestamp.Local().Format("15:04:05.000"), evt.Name, payload)
	return nil
}

func done(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
