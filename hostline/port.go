package hostline

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// allow tests to override external dependencies
var (
	openPort     = func(name string, mode *serial.Mode) (serial.Port, error) { return serial.Open(name, mode) }
	getPortsList = serial.GetPortsList
)

// Config holds the parameters for opening a tty device with OpenTTY.
type Config struct {
	Device   string
	BaudRate int
}

// PortConfig selects a real serial port. Frames are always 8N1, the only
// format the console speaks.
type PortConfig struct {
	Name        string
	BaudRate    int
	ReadTimeout time.Duration
}

func (c PortConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("port name cannot be empty")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("read timeout cannot be negative: %v", c.ReadTimeout)
	}
	return nil
}

// Port is a serial port opened through go.bug.st/serial, typically a
// USB-UART adapter wired to another board.
type Port struct {
	serial.Port
	name string
}

// OpenPort opens and configures a serial port.
func OpenPort(cfg PortConfig) (*Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := openPort(cfg.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
			p.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	return &Port{Port: p, name: cfg.Name}, nil
}

func (p *Port) Name() string { return p.name }

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	return getPortsList()
}
