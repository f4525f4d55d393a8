// Command uartecho runs the STM32 serial echo console on a simulated
// board and connects its USART2 line to the host.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	log      = zerolog.Nop()

	rootCmd = &cobra.Command{
		Use:          "uartecho",
		Short:        "Polled USART2 echo console for the STM32F103",
		Long:         "Run the USART2 echo firmware on a register-level STM32F103 simulator and bridge its serial line to this terminal, a pseudo-terminal or a real serial port.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q", logLevel)
			}
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
				Level(lvl).
				With().Timestamp().Logger()
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.AddCommand(runCmd, divisorCmd, portsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
