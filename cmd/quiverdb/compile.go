package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quiverdb/quiverdb/pkg/expr"
)

func newCompileCmd() *cobra.Command {
	var forIndex bool

	cmd := &cobra.Command{
		Use:   "compile <expression>",
		Short: "Compile an expression and print its normalized form and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]

			var n *expr.Node
			var err error
			if forIndex {
				n, err = expr.CompileForIndex(source)
			} else {
				n, err = expr.Compile(source)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "source:   ", n.Source())
			fmt.Fprintln(cmd.OutOrStdout(), "scalar:   ", n.IsScalar())
			fmt.Fprintln(cmd.OutOrStdout(), "immutable:", n.IsImmutable())
			fmt.Fprintln(cmd.OutOrStdout(), "uses *:   ", n.UsesSource())
			fmt.Fprintln(cmd.OutOrStdout(), "fields:   ", strings.Join(n.Fields(), ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&forIndex, "for-index", false, "compile under the restricted index grammar")
	return cmd
}
