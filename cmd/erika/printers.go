package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/erika/internal/command"
	"github.com/Veraticus/erika/internal/printer"
)

func defaultSpooler() printer.Spooler {
	return printer.NewCUPS(command.NewExecRunner())
}

// newPrintersCmd lists print destinations and shows which one jobs would use.
func newPrintersCmd(v *viper.Viper, spooler func() printer.Spooler) *cobra.Command {
	return &cobra.Command{
		Use:   "printers",
		Short: "List available printers and the one print jobs will use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sp := spooler()

			names, err := sp.Printers(ctx)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No printers found.")
				return err
			}

			d, err := printer.NewDispatcher(sp, noCleanup{}, printer.WithPrinter(v.GetString("print.printer")))
			if err != nil {
				return err
			}
			selected, err := d.ResolvePrinter(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range names {
				mark := ""
				if name == selected {
					mark = "*"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\n", mark, name)
			}
			return w.Flush()
		},
	}
}

// noCleanup satisfies printer.Scheduler for read-only lookups.
type noCleanup struct{}

func (noCleanup) Schedule(string) error { return nil }
