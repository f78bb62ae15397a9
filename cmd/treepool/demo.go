package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbehopkins/treepool/expr"
	"github.com/cbehopkins/treepool/pool"
)

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Build and flatten a nested sum",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			sum := buildDemo(a.pool)
			defer sum.Release()

			fmt.Fprintf(w, "built:     %s\n", expr.Format(sum))
			expr.Flatten(sum)
			fmt.Fprintf(w, "flattened: %s\n", expr.Format(sum))
			printStats(w, a.pool)
			return a.pool.Validate()
		},
	}
}

// buildDemo returns Add(Add(1,2),3).
func buildDemo(p *pool.Pool) pool.Reference {
	inner := expr.NewAddition(p, expr.NewInteger(p, 1), expr.NewInteger(p, 2))
	return expr.NewAddition(p, inner, expr.NewInteger(p, 3))
}
