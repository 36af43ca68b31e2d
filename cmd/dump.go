package cmd

import (
	"sort"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/engine/core"
)

func newDumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "dump",
		Short:         "List every loaded unit with its kind and state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFromContext(cmd)
			snap := app.Engine.Dump()

			ids := make([]core.UnitID, 0, len(snap))
			for id := range snap {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

			headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
			columnFmt := color.New(color.FgYellow).SprintfFunc()
			tbl := table.New("ID", "Kind", "State", "Description")
			tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)

			for _, id := range ids {
				row := snap[id]
				tbl.AddRow(string(id), row.Desc.Kind.String(), row.State.String(), row.Desc.Description)
			}
			tbl.Print()
			return nil
		},
	}
}
