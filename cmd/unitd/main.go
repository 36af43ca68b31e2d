// Command unitd is the unit lifecycle and dependency engine's CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/trly/unitd/cmd"
)

func main() {
	root := (&cmd.RootCommand{}).GetCobraCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
