package main

import (
	"github.com/spf13/cobra"
)

const (
	groupDaemon = "daemon"
	groupWorker = "worker"
)

func newRootCommand() *cobra.Command {
	var socketFlag, configFlag string
	ctx := newCommandContext(&socketFlag, &configFlag)

	root := &cobra.Command{
		Use:           "fictionbridge",
		Short:         "Supervise the fiction translator worker and talk to it over JSON-RPC",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&socketFlag, "socket", "", "Path to the fictionbridge daemon socket")
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	root.AddGroup(
		&cobra.Group{ID: groupDaemon, Title: "Daemon Commands:"},
		&cobra.Group{ID: groupWorker, Title: "Worker Commands:"},
	)
	addToGroup(root, groupDaemon, newDaemonCommands(ctx)...)
	addToGroup(root, groupDaemon, newLogsCommand(ctx), newTestNotifyCommand(ctx))
	addToGroup(root, groupWorker,
		newInvokeCommand(ctx),
		newEventsCommand(ctx),
		newHistoryCommand(ctx),
	)
	root.AddCommand(newDaemonRunCommand(ctx), newConfigCommand(ctx))
	return root
}

func addToGroup(root *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.GroupID = group
		root.AddCommand(cmd)
	}
}
