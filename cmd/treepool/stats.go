package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/cbehopkins/treepool/expr"
	"github.com/cbehopkins/treepool/metrics"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print pool metrics in the Prometheus text format after a demo run",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			if err := reg.Register(metrics.NewPoolCollector(a.pool, "treepool")); err != nil {
				return err
			}

			sum := buildDemo(a.pool)
			expr.Flatten(sum)
			defer sum.Release()

			families, err := reg.Gather()
			if err != nil {
				return err
			}
			enc := expfmt.NewEncoder(cmd.OutOrStdout(), expfmt.NewFormat(expfmt.TypeTextPlain))
			for _, mf := range families {
				if err := enc.Encode(mf); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
