package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/engine/core"
)

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "get <unit>",
		Short:         "Print one unit's descriptor and current state",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFromContext(cmd)
			id := core.UnitID(args[0])

			desc, ok := app.Engine.Get(id)
			if !ok {
				return fmt.Errorf("unknown unit %q", id)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:          %s\n", desc.ID)
			fmt.Fprintf(out, "kind:        %s\n", desc.Kind)
			fmt.Fprintf(out, "description: %s\n", desc.Description)
			fmt.Fprintf(out, "state:       %s\n", app.Engine.State(id))
			fmt.Fprintf(out, "requires:    %s\n", joinIDs(desc.Deps.Requires))
			fmt.Fprintf(out, "wants:       %s\n", joinIDs(desc.Deps.Wants))
			fmt.Fprintf(out, "after:       %s\n", joinIDs(desc.Deps.After))
			fmt.Fprintf(out, "before:      %s\n", joinIDs(desc.Deps.Before))
			fmt.Fprintf(out, "conflicts:   %s\n", joinIDs(desc.Deps.Conflicts))
			return nil
		},
	}
}

func joinIDs(ids []core.UnitID) string {
	if len(ids) == 0 {
		return "-"
	}
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = string(id)
	}
	return strings.Join(ss, ", ")
}
