package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cbehopkins/treepool/config"
	"github.com/cbehopkins/treepool/internal/logging"
	"github.com/cbehopkins/treepool/pool"
)

// app is the state shared by every subcommand once flags and configuration
// have been resolved.
type app struct {
	configPath string
	capacity   int

	cfg    config.Config
	logger *slog.Logger
	pool   *pool.Pool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "treepool",
		Short:         "Build, persist and inspect expression trees in a fixed-size node pool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().IntVar(&a.capacity, "capacity", 0, "arena size in bytes, overriding the configuration")

	root.AddCommand(
		newDemoCmd(a),
		newRecordsCmd(a),
		newStatsCmd(a),
		newExhaustCmd(a),
	)
	return root
}

func (a *app) setup(logOut io.Writer) error {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		if cfg, err = config.Load(a.configPath); err != nil {
			return err
		}
	}
	if a.capacity != 0 {
		cfg.Pool.Capacity = a.capacity
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.Log, logOut)

	p, err := pool.New(cfg.Pool.Capacity, append(cfg.PoolOptions(), pool.WithLogger(a.logger))...)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	a.pool = p
	a.logger.Debug("pool ready", "capacity", cfg.Pool.Capacity, "max_nodes", p.Stats().MaxNodes)
	return nil
}

func printStats(w io.Writer, p *pool.Pool) {
	s := p.Stats()
	fmt.Fprintf(w, "used %d/%d bytes, %d/%d nodes, %d allocation failures\n",
		s.Used, s.Limit, s.LiveNodes, s.MaxNodes, s.AllocationFailures)
}
