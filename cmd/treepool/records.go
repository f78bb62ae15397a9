package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbehopkins/treepool/config"
	"github.com/cbehopkins/treepool/expr"
	"github.com/cbehopkins/treepool/pool"
	"github.com/cbehopkins/treepool/records"
)

func newRecordsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "Persist expressions as records and resolve them back",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openBackend()
			if err != nil {
				return err
			}
			defer backend.Close()

			w := cmd.OutOrStdout()
			p := a.pool
			store := records.NewStore(backend, a.logger)
			models := records.NewModelStore(store, p, a.cfg.Records.Extension, a.cfg.Records.MemoizedModels, a.logger)
			defer models.Close()

			saved := map[string]pool.Reference{
				"f": expr.NewAddition(p, expr.NewSymbol(p, "x"),
					expr.NewMultiplication(p, expr.NewInteger(p, 2), expr.NewSymbol(p, "y"))),
				"g": expr.NewOpposite(p, expr.NewInteger(p, 3)),
			}
			for name, ref := range saved {
				err := store.Put(records.Record{Name: name, Extension: models.Extension()}, p.Export(ref))
				ref.Release()
				if err != nil {
					return err
				}
			}

			n, err := models.NumberOfDefinedModels()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%d defined models\n", n)
			for i := 0; i < n; i++ {
				m, err := models.DefinedModelAtIndex(i)
				if err != nil {
					return err
				}
				ref, ok := models.Resolve(m.Record().Name)
				if !ok {
					return fmt.Errorf("resolve %s: %w", m.Record(), records.ErrNotFound)
				}
				fmt.Fprintf(w, "%s = %s\n", m.Record(), expr.Format(ref))
				ref.Release()
			}
			printStats(w, p)
			return nil
		},
	}
}

func (a *app) openBackend() (records.Backend, error) {
	if a.cfg.Records.Backend == config.BackendBadger {
		return records.OpenBadger(a.cfg.Records.Dir, a.logger)
	}
	return records.NewMemoryBackend(), nil
}
