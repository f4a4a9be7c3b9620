package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/flatlease/internal/scheduler"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one sweep immediately and exit",
	}
	for _, s := range []struct{ name, short string }{
		{scheduler.SweepContracts, "Activate started contracts and expire ended ones"},
		{scheduler.SweepDues, "Mark unpaid dues past their date as overdue"},
		{scheduler.SweepMonthly, "Generate this month's building-wide dues"},
		{scheduler.SweepNotify, "Send reminders for contracts nearing their end date"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   s.name,
			Short: s.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSweep(cmd, s.name)
			},
		})
	}
	return cmd
}

func runSweep(cmd *cobra.Command, name string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.bus.Start(cmd.Context())
	res, err := a.scheduler.Run(cmd.Context(), name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: examined=%d transitioned=%d failed=%d\n", name, res.Examined, res.Transitioned, res.Failed)
	return nil
}
