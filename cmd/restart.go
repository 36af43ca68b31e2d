package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/engine/core"
)

func newRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "restart <unit>",
		Short:         "Stop a unit, wait for it to go dead, then start it again",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFromContext(cmd)
			id := core.UnitID(args[0])

			if _, ok := app.Engine.Get(id); !ok {
				return fmt.Errorf("unknown unit %q", id)
			}

			app.Engine.Restart(id)
			// Restart's stop-then-start happens on the engine's own
			// goroutine; give it a moment to leave its pre-restart state
			// before polling for the final one.
			time.Sleep(20 * time.Millisecond)
			final := waitSettled(app.Engine, id)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, final)
			if final == core.Failed {
				return fmt.Errorf("%s failed to restart", id)
			}
			return nil
		},
	}
}
