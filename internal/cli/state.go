package cli

import (
	"github.com/spf13/cobra"

	"github.com/FgForrest/evitaDB-sub062/internal/engine"
)

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the durable engine state",
		Long: `Show the durable engine state: its version, the WAL record it covers and
the active, inactive and read-only catalogs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withEngine(rootOpts, cmd, f, func(e *engine.Engine) error {
				return f.Success(newStateView(e.State().EngineState()))
			})
		},
	}
}
