package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luhtfiimanal/go-stm32-uart/hostline"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports usable with run --device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := hostline.ListPorts()
		if err != nil {
			return fmt.Errorf("list ports: %w", err)
		}
		if len(ports) == 0 {
			log.Warn().Msg("no serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}
