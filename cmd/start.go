package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/engine/core"
)

func newStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "start <unit>",
		Short:         "Start a unit and its Requires/Wants closure",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFromContext(cmd)
			id := core.UnitID(args[0])

			if _, ok := app.Engine.Get(id); !ok {
				return fmt.Errorf("unknown unit %q", id)
			}

			app.Engine.Start(id)
			final := waitSettled(app.Engine, id)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, final)
			if final == core.Failed {
				return fmt.Errorf("%s failed to start", id)
			}
			return nil
		},
	}
}
