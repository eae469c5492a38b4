package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awygle/udptherbone/pipeline"
	"github.com/awygle/udptherbone/tracing"
	"github.com/awygle/udptherbone/wishbone"
)

type simulateCmd struct {
	*app
	recordFlags

	presets []string
	steps   int
	counts  bool
}

func newSimulateCmd(a *app) *cobra.Command {
	s := &simulateCmd{app: a}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one request through a host and a device back to back.",
		Long: "`simulate --preset 0x10=5 --write 0x20=7 --read 0x10` sends " +
			"the writes and reads to a simulated device in front of a " +
			"register file and prints the responses.",
		Args: cobra.NoArgs,
		RunE: s.run,
	}

	s.register(cmd)
	cmd.Flags().StringArrayVar(&s.presets, "preset", nil,
		"set a register before the request, as addr=data; repeatable")
	cmd.Flags().IntVar(&s.steps, "max-steps", 0,
		"step limit, overriding the configuration")
	cmd.Flags().BoolVar(&s.counts, "counts", false,
		"print how often each component reached each hook position")

	return cmd
}

func (s *simulateCmd) run(cmd *cobra.Command, _ []string) error {
	records, err := s.records()
	if err != nil {
		return err
	}

	regs := wishbone.NewRegisterFile(s.cfg.Bus.DataWidth)
	for _, p := range s.presets {
		addr, data, err := parseAssignment(p)
		if err != nil {
			return fmt.Errorf("--preset %q: %w", p, err)
		}

		regs.Poke(addr, data)
	}

	counts := tracing.NewCountTracer()
	l := pipeline.MakeBuilder().
		WithConfig(s.cfg).
		WithTarget(regs).
		WithTracer(counts).
		BuildLoopback("Sim")

	maxSteps := s.cfg.Sim.MaxSteps
	if s.steps > 0 {
		maxSteps = s.steps
	}

	rsps, err := l.Transact(records, maxSteps)

	out := cmd.OutOrStdout()
	printResponses(out, rsps)

	if s.counts {
		for _, c := range counts.Counts() {
			fmt.Fprintf(out, "%s %s %d\n", c.Component, c.Pos, c.Count)
		}
	}

	s.logger.Debug().
		Uint64("steps", l.Domain.Steps()).
		Uint64("bus_transactions", l.Device.Slave.Transactions()).
		Msg("simulation done")

	return err
}
