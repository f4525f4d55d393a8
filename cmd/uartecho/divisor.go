package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	uart "github.com/luhtfiimanal/go-stm32-uart"
)

var (
	divisorClock uint32

	divisorCmd = &cobra.Command{
		Use:   "divisor [baud...]",
		Short: "Show USART baud rate divisors",
		Long:  "Print the BRR mantissa and fraction for each baud rate, with the rate actually produced and its error. Without arguments the precomputed 8 MHz rates are listed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			bauds, err := parseBauds(args)
			if err != nil {
				return err
			}
			return writeDivisors(cmd.OutOrStdout(), divisorClock, bauds)
		},
	}
)

func init() {
	divisorCmd.Flags().Uint32Var(&divisorClock, "clock", uart.DefaultClockHz, "USART peripheral clock in Hz")
}

func parseBauds(args []string) ([]uint32, error) {
	if len(args) == 0 {
		bauds := make([]uint32, 0, len(uart.Divisors8MHz))
		for b := range uart.Divisors8MHz {
			bauds = append(bauds, b)
		}
		sort.Slice(bauds, func(i, j int) bool { return bauds[i] < bauds[j] })
		return bauds, nil
	}

	bauds := make([]uint32, 0, len(args))
	for _, a := range args {
		b, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid baud rate %q", a)
		}
		bauds = append(bauds, uint32(b))
	}
	return bauds, nil
}

func writeDivisors(w io.Writer, clockHz uint32, bauds []uint32) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "BAUD\tMANTISSA\tFRACTION\tBRR\tACTUAL\tERROR\t")
	for _, b := range bauds {
		d, err := uart.ComputeDivisor(clockHz, b)
		if err != nil {
			fmt.Fprintf(tw, "%d\t-\t-\t-\t-\tout of range\t\n", b)
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%#x\t%.0f\t%+.2f%%\t\n",
			b, d.Mantissa, d.Fraction, d.BRR(), d.Baud(clockHz), d.Error(clockHz, b)*100)
	}
	return tw.Flush()
}
