package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbehopkins/treepool/expr"
)

func newExhaustCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exhaust",
		Short: "Grow a sum until the pool runs out and show how it degrades",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			p := a.pool
			sum := expr.NewAddition(p)
			defer sum.Release()

			terms := 0
			for !sum.IsAllocationFailure() {
				n := sum.NumberOfChildren()
				term := expr.NewInteger(p, int64(terms))
				sum.AddChildTreeAtIndex(term, n, n)
				term.Release()
				if !sum.IsAllocationFailure() {
					terms++
				}
			}
			fmt.Fprintf(w, "added %d terms before the pool ran out; the sum is now %s\n",
				terms, expr.Format(sum))
			printStats(w, p)
			return p.Validate()
		},
	}
}
