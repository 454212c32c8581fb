// Command quiverdb is a small inspection CLI over the expression
// compiler and query planner, built with cobra the way the teacher
// builds its own command-line entrypoints.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "quiverdb",
		Short: "Inspect quiverdb expressions and query plans",
	}

	root.AddCommand(newCompileCmd())
	root.AddCommand(newExplainCmd())
	root.AddCommand(newReplCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
