package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/engine/core"
)

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "stop <unit>",
		Short:         "Stop a unit and cascade to units that Require it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFromContext(cmd)
			id := core.UnitID(args[0])

			if _, ok := app.Engine.Get(id); !ok {
				return fmt.Errorf("unknown unit %q", id)
			}

			app.Engine.Stop(id)
			final := waitSettled(app.Engine, id)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, final)
			return nil
		},
	}
}
