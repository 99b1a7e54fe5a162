package main

import (
	"github.com/spf13/cobra"

	"fictionbridge/internal/daemonrun"
)

// newDaemonRunCommand is the entry point spawned by "start". Config loading is
// deferred to RunE so a bad file surfaces in the daemon's own error output.
func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the fictionbridge daemon (internal)",
		Hidden:       true,
		Annotations:  skipConfigLoad,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts.SocketPath = ctx.socketPath()
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&opts.Diagnostic, diagnosticFlag, false, diagnosticUsage)
	flags.BoolVar(&opts.Development, "dev", false, "Include source locations in log output")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")
	return cmd
}
