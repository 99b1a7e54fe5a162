package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fictionbridge/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		name   string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived worker events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(strings.TrimSpace(name), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Events)
				}
				out := cmd.OutOrStdout()
				if len(resp.Events) == 0 {
					fmt.Fprintln(out, "No archived events")
					return nil
				}
				rows := make([][]string, 0, len(resp.Events))
				for _, evt := range resp.Events {
					rows = append(rows, []string{
						strconv.FormatUint(evt.Sequence, 10),
						evt.Timestamp.Local().Format("2006-01-02 15:04:05"),
						evt.Name,
						truncate(string(evt.Payload), 60),
						shortSession(evt.SessionID),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Seq", "Time", "Event", "Payload", "Session"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Only show events with this name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output events as JSON")
	return cmd
}

func truncate(value string, width int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width-3]) + "..."
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
