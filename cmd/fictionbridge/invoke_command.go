package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fictionbridge/internal/ipc"
)

func newInvokeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "invoke <method> [params-json]",
		Short: "Call a worker method and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.TrimSpace(args[0])
			if method == "" {
				return errors.New("method is required")
			}
			var params json.RawMessage
			if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
				raw := []byte(strings.TrimSpace(args[1]))
				if !json.Valid(raw) {
					return fmt.Errorf("params for %s are not valid JSON", method)
				}
				params = raw
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Invoke(method, params)
				if err != nil {
					return err
				}
				if asJSON {
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
					if resp.Error != nil {
						return fmt.Errorf("worker error %d: %s", resp.Error.Code, resp.Error.Message)
					}
					return nil
				}
				if resp.Error != nil {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "worker error %d: %s\n", resp.Error.Code, resp.Error.Message)
					if len(resp.Error.Data) > 0 {
						fmt.Fprintf(out, "data: %s\n", resp.Error.Data)
					}
					return fmt.Errorf("%s failed", method)
				}
				return printResult(cmd, resp.Result)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response envelope as JSON")
	return cmd
}

func printResult(cmd *cobra.Command, result json.RawMessage) error {
	if len(result) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "null")
		return nil
	}
	var value any
	if err := json.Unmarshal(result, &value); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(result))
		return nil
	}
	return writeJSON(cmd, value)
}
