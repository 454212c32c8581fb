package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quiverdb/quiverdb/pkg/engine"
	"github.com/quiverdb/quiverdb/pkg/expr"
	"github.com/quiverdb/quiverdb/pkg/planner"
)

func newExplainCmd() *cobra.Command {
	var (
		dbPath     string
		collection string
		selectExpr string
		whereExprs []string
		orderBy    string
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Compile a query against a collection and print the chosen plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := engine.Open(dbPath, nil)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			coll, err := db.Collection(collection)
			if err != nil {
				return fmt.Errorf("collection %q: %w", collection, err)
			}

			if selectExpr == "" {
				selectExpr = "*"
			}
			sel, err := expr.Compile(selectExpr)
			if err != nil {
				return fmt.Errorf("select: %w", err)
			}

			q := &planner.Query{Select: sel, Limit: limit, Offset: offset}
			for _, w := range whereExprs {
				n, err := expr.Compile(w)
				if err != nil {
					return fmt.Errorf("where %q: %w", w, err)
				}
				q.Where = append(q.Where, n)
			}
			if orderBy != "" {
				n, err := expr.Compile(orderBy)
				if err != nil {
					return fmt.Errorf("order-by: %w", err)
				}
				q.OrderBy = n
			}

			plan, err := coll.Explain(q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "collection:       ", plan.Collection)
			fmt.Fprintln(out, "index_expression: ", plan.IndexExpression)
			fmt.Fprintln(out, "index_cost:       ", plan.IndexCost)
			fmt.Fprintln(out, "index_key_only:   ", plan.IsIndexKeyOnly)
			fmt.Fprintln(out, "remaining_filters:", len(plan.Filters))
			for _, f := range plan.Filters {
				fmt.Fprintln(out, "  -", f.Source())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", ":memory:", "database file path")
	cmd.Flags().StringVar(&collection, "collection", "", "collection name")
	cmd.Flags().StringVar(&selectExpr, "select", "*", "projection expression")
	cmd.Flags().StringArrayVar(&whereExprs, "where", nil, "WHERE term (repeatable)")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "ORDER BY expression")
	cmd.Flags().IntVar(&limit, "limit", 0, "row limit")
	cmd.Flags().IntVar(&offset, "offset", 0, "row offset")
	cmd.MarkFlagRequired("collection")

	return cmd
}
