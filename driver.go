package uart

import (
	"context"
	"errors"
	"fmt"

	"github.com/luhtfiimanal/go-stm32-uart/stm32f1"
)

// Config selects the bit rate of the console.
type Config struct {
	// ClockHz is the USART2 peripheral clock (PCLK1).
	ClockHz uint32
	// Baud is the wanted bit rate. Ignored when Divisor is set.
	Baud uint32
	// Divisor, when non-zero, is written to BRR as is instead of being
	// computed from ClockHz and Baud.
	Divisor Divisor
}

// DefaultConfig is 115200 baud from the 8 MHz internal oscillator, using
// the precomputed divisor.
func DefaultConfig() Config {
	return Config{
		ClockHz: DefaultClockHz,
		Baud:    DefaultBaud,
		Divisor: Divisor8MHz115200,
	}
}

// Validate checks that the configuration yields an encodable divisor.
func (c Config) Validate() error {
	_, err := c.divisor()
	return err
}

func (c Config) divisor() (Divisor, error) {
	if c.Divisor != (Divisor{}) {
		if !c.Divisor.Valid() {
			return Divisor{}, fmt.Errorf("%w: %s", ErrDivisorRange, c.Divisor)
		}
		return c.Divisor, nil
	}
	return ComputeDivisor(c.ClockHz, c.Baud)
}

// Driver is the polled serial console on USART2.
//
// Init must run once before any byte is sent or received. The driver
// holds the device exclusively and is not safe for concurrent use.
type Driver struct {
	dev   *stm32f1.Device
	usart *stm32f1.USART
	div   Divisor
}

// New prepares a driver for dev. It touches no register.
func New(dev *stm32f1.Device, cfg Config) (*Driver, error) {
	if dev == nil {
		return nil, errors.New("uart: nil device")
	}
	div, err := cfg.divisor()
	if err != nil {
		return nil, err
	}
	return &Driver{dev: dev, usart: dev.USART2, div: div}, nil
}

// Divisor returns the divisor Init writes to BRR.
func (d *Driver) Divisor() Divisor { return d.div }

// Init brings up the console. The order is fixed: a peripheral's
// registers ignore writes until its bus clock is on.
func (d *Driver) Init() {
	rcc, gpioa := d.dev.RCC, d.dev.GPIOA

	rcc.APB2ENR.SetBits(stm32f1.RCC_APB2ENR_IOPAEN)
	rcc.APB1ENR.SetBits(stm32f1.RCC_APB1ENR_USART2EN)

	d.usart.BRR.Store(d.div.BRR())
	d.usart.CR1.Store(stm32f1.USART_CR1_TE | stm32f1.USART_CR1_RE | stm32f1.USART_CR1_UE)

	// PA2: alternate function push-pull output, MODE=01.
	// PA3 keeps its reset state, floating input.
	gpioa.CRL.ClearBits(stm32f1.GPIO_CRL_CNF2_Msk)
	gpioa.CRL.SetBits(stm32f1.GPIO_CRL_CNF2_1 | stm32f1.GPIO_CRL_MODE2_0)
}

// SendByte waits for the transmit data register to empty, then loads c
// into it. It never times out.
func (d *Driver) SendByte(c byte) byte {
	for !d.usart.SR.HasBits(stm32f1.USART_SR_TXE) {
	}
	d.usart.DR.Store(uint32(c))
	return c
}

// SendLine sends s followed by '\n'.
func (d *Driver) SendLine(s string) bool {
	for i := 0; i < len(s); i++ {
		d.SendByte(s[i])
	}
	d.SendByte('\n')
	return true
}

// ReceiveByte waits for a received byte and returns it. Error flags in SR
// are neither checked nor cleared.
func (d *Driver) ReceiveByte() byte {
	for !d.usart.SR.HasBits(stm32f1.USART_SR_RXNE) {
	}
	return byte(d.usart.DR.Get(stm32f1.USART_DR_DR))
}

// SendByteContext is SendByte with the wait bounded by ctx.
func (d *Driver) SendByteContext(ctx context.Context, c byte) (byte, error) {
	for !d.usart.SR.HasBits(stm32f1.USART_SR_TXE) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	d.usart.DR.Store(uint32(c))
	return c, nil
}

// SendLineContext is SendLine with every wait bounded by ctx.
func (d *Driver) SendLineContext(ctx context.Context, s string) error {
	for i := 0; i < len(s); i++ {
		if _, err := d.SendByteContext(ctx, s[i]); err != nil {
			return err
		}
	}
	_, err := d.SendByteContext(ctx, '\n')
	return err
}

// ReceiveByteContext is ReceiveByte with the wait bounded by ctx.
func (d *Driver) ReceiveByteContext(ctx context.Context) (byte, error) {
	for !d.usart.SR.HasBits(stm32f1.USART_SR_RXNE) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	return byte(d.usart.DR.Get(stm32f1.USART_DR_DR)), nil
}

// Write sends p byte by byte. It always succeeds.
func (d *Driver) Write(p []byte) (int, error) {
	for _, c := range p {
		d.SendByte(c)
	}
	return len(p), nil
}

func (d *Driver) WriteString(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		d.SendByte(s[i])
	}
	return len(s), nil
}

// Read blocks for the first byte, then takes only bytes that are already
// waiting.
func (d *Driver) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = d.ReceiveByte()
	n := 1
	for n < len(p) && d.usart.SR.HasBits(stm32f1.USART_SR_RXNE) {
		p[n] = byte(d.usart.DR.Get(stm32f1.USART_DR_DR))
		n++
	}
	return n, nil
}

// LineStatus is a snapshot of the USART status register.
type LineStatus uint32

// LineStatus reads SR once. On the chip the error flags clear when SR is
// read followed by DR, so a snapshot taken before ReceiveByte describes
// the byte it returns.
func (d *Driver) LineStatus() LineStatus {
	return LineStatus(d.usart.SR.Load())
}

func (s LineStatus) TxEmpty() bool { return s&stm32f1.USART_SR_TXE != 0 }
func (s LineStatus) TxComplete() bool { return s&stm32f1.USART_SR_TC != 0 }
func (s LineStatus) RxNotEmpty() bool { return s&stm32f1.USART_SR_RXNE != 0 }

// Err joins the receive errors flagged in the snapshot, or returns nil.
func (s LineStatus) Err() error {
	var errs []error
	if s&stm32f1.USART_SR_PE != 0 {
		errs = append(errs, ErrParity)
	}
	if s&stm32f1.USART_SR_FE != 0 {
		errs = append(errs, ErrFraming)
	}
	if s&stm32f1.USART_SR_NE != 0 {
		errs = append(errs, ErrNoise)
	}
	if s&stm32f1.USART_SR_ORE != 0 {
		errs = append(errs, ErrOverrun)
	}
	return errors.Join(errs...)
}
