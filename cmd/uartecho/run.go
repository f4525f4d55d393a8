package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	uart "github.com/luhtfiimanal/go-stm32-uart"
	"github.com/luhtfiimanal/go-stm32-uart/hostline"
	"github.com/luhtfiimanal/go-stm32-uart/sim"
)

var (
	// The console's default host end.
	stdin, stdout = os.Stdin, os.Stdout

	runOpts = struct {
		pty       bool
		device    string
		baud      uint32
		clock     uint32
		mantissa  uint16
		fraction  uint8
		txLatency int
		trace     bool
	}{}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the echo firmware",
		Long: `Run the echo firmware on the simulated board.

The serial line is connected to this terminal unless --pty or --device is
given. On a terminal, Enter sends a carriage return, which the firmware
answers with <RETURN>. Ctrl-C stops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := firmwareConfig(cmd)
			if err != nil {
				return err
			}
			return runFirmware(cmd.Context(), cfg)
		},
	}
)

func init() {
	defineRunFlags()
}

func defineRunFlags() {
	f := runCmd.Flags()
	f.BoolVar(&runOpts.pty, "pty", false, "expose the line as a pseudo-terminal and print its path")
	f.StringVar(&runOpts.device, "device", "", "bridge the line to a real serial port, e.g. /dev/ttyUSB0")
	f.Uint32Var(&runOpts.baud, "baud", uart.DefaultBaud, "bit rate")
	f.Uint32Var(&runOpts.clock, "clock", uart.DefaultClockHz, "USART peripheral clock in Hz")
	f.Uint16Var(&runOpts.mantissa, "mantissa", 0, "BRR mantissa, overrides --baud")
	f.Uint8Var(&runOpts.fraction, "fraction", 0, "BRR fraction in sixteenths, overrides --baud")
	f.IntVar(&runOpts.txLatency, "tx-latency", 0, "status reads a byte spends in the transmitter")
	f.BoolVar(&runOpts.trace, "trace", false, "print the register writes made by bring-up")
	runCmd.MarkFlagsMutuallyExclusive("pty", "device")
	runCmd.MarkFlagsRequiredTogether("mantissa", "fraction")
}

// firmwareConfig picks the divisor: given outright, precomputed for the
// 8 MHz clock, or computed.
func firmwareConfig(cmd *cobra.Command) (uart.Config, error) {
	cfg := uart.Config{ClockHz: runOpts.clock, Baud: runOpts.baud}
	switch {
	case cmd.Flags().Changed("mantissa"):
		cfg.Divisor = uart.Divisor{Mantissa: runOpts.mantissa, Fraction: runOpts.fraction}
		// A zero divisor would mean "compute it" to uart.Config.
		if !cfg.Divisor.Valid() {
			return uart.Config{}, fmt.Errorf("%w: %s", uart.ErrDivisorRange, cfg.Divisor)
		}
	case cfg.ClockHz == uart.DefaultClockHz:
		cfg.Divisor = uart.Divisors8MHz[cfg.Baud]
	}
	if err := cfg.Validate(); err != nil {
		return uart.Config{}, err
	}
	return cfg, nil
}

func openHost() (io.ReadWriteCloser, error) {
	switch {
	case runOpts.pty:
		p, err := hostline.OpenPTY()
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(stdout, p.Name())
		log.Info().Str("path", p.Name()).Msg("serial line on pty")
		return p, nil
	case runOpts.device != "":
		p, err := hostline.OpenPort(hostline.PortConfig{Name: runOpts.device, BaudRate: int(runOpts.baud)})
		if err != nil {
			return nil, err
		}
		log.Info().Str("device", p.Name()).Uint32("baud", runOpts.baud).Msg("serial line on port")
		return p, nil
	default:
		s, err := hostline.OpenStdio(stdin, stdout)
		if err != nil {
			return nil, err
		}
		log.Debug().Bool("terminal", s.IsTerminal()).Msg("serial line on stdio")
		return s, nil
	}
}

func runFirmware(ctx context.Context, cfg uart.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m := sim.New(sim.Config{TxLatency: runOpts.txLatency}, log)
	defer m.Close()

	drv, err := uart.New(m.Device(), cfg)
	if err != nil {
		return err
	}

	host, err := openHost()
	if err != nil {
		return err
	}
	bridge := hostline.NewBridge(m.Line(), host, log)
	bridge.Start()
	defer func() {
		bridge.Close()
		toHost, toDev := bridge.Stats()
		st := m.Stats()
		log.Debug().
			Uint64("tx_bytes", toHost).
			Uint64("rx_bytes", toDev).
			Uint64("loads", st.Loads).
			Uint64("stores", st.Stores).
			Uint64("faults", st.Faults).
			Msg("stopped")
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.SetTrace(runOpts.trace)
	drv.Init()
	if runOpts.trace {
		for _, a := range m.Trace() {
			fmt.Fprintln(os.Stderr, a)
		}
		m.SetTrace(false)
		m.ClearTrace()
	}

	div := drv.Divisor()
	log.Info().
		Str("divisor", div.String()).
		Str("brr", fmt.Sprintf("%#x", div.BRR())).
		Float64("baud", div.Baud(cfg.ClockHz)).
		Msg("console up")

	done := make(chan error, 1)
	go func() { done <- uart.Serve(ctx, drv) }()

	var lineErr error
	select {
	case err := <-bridge.Err():
		if errors.Is(err, io.EOF) {
			log.Debug().Msg("host input ended")
			drain(ctx, m)
		} else {
			log.Error().Err(err).Msg("serial line failed")
			lineErr = fmt.Errorf("serial line: %w", err)
		}
		cancel()
	case <-ctx.Done():
	}

	if err := <-done; !errors.Is(err, context.Canceled) {
		return err
	}
	return lineErr
}

// drain waits for the firmware to answer everything it was sent. The
// machine must look idle on a few polls in a row: between reading a byte
// and echoing it, it briefly looks idle too.
func drain(ctx context.Context, m *sim.Machine) {
	const settle = 3

	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	timeout := time.After(time.Second)

	quiet := 0
	for quiet < settle {
		select {
		case <-tick.C:
			if m.Idle() {
				quiet++
			} else {
				quiet = 0
			}
		case <-timeout:
			log.Warn().Msg("firmware still busy, stopping anyway")
			return
		case <-ctx.Done():
			return
		}
	}
}
