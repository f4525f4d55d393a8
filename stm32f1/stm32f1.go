// Package stm32f1 is the register map of the STM32F103 peripherals used
// by the serial console: the reset and clock controller, GPIO port A and
// USART2.
//
// Names follow the reference manual (RM0008) so a register or bit can be
// looked up there directly.
package stm32f1

import "github.com/luhtfiimanal/go-stm32-uart/mmio"

// Memory map.
const (
	PeriphBase = 0x4000_0000
	APB1Base   = PeriphBase
	APB2Base   = PeriphBase + 0x0001_0000
	AHBBase    = PeriphBase + 0x0002_0000

	USART2Base = APB1Base + 0x4400
	GPIOABase  = APB2Base + 0x0800
	RCCBase    = AHBBase + 0x1000
)

// HSIFrequency is the internal RC oscillator, the system clock after reset.
const HSIFrequency = 8_000_000

// RCC register offsets.
const (
	RCC_CR       = 0x00
	RCC_CFGR     = 0x04
	RCC_CIR      = 0x08
	RCC_APB2RSTR = 0x0C
	RCC_APB1RSTR = 0x10
	RCC_AHBENR   = 0x14
	RCC_APB2ENR  = 0x18
	RCC_APB1ENR  = 0x1C
	RCC_BDCR     = 0x20
	RCC_CSR      = 0x24
	RCCSize      = 0x28
)

// RCC bits.
const (
	RCC_CR_HSION  = 1 << 0
	RCC_CR_HSIRDY = 1 << 1

	RCC_APB2ENR_IOPAEN = 1 << 2

	RCC_APB1ENR_USART2EN = 1 << 17

	RCC_CR_Reset = RCC_CR_HSION | RCC_CR_HSIRDY | 0x10<<3 // HSITRIM = 16
)

// GPIO register offsets.
const (
	GPIO_CRL  = 0x00
	GPIO_CRH  = 0x04
	GPIO_IDR  = 0x08
	GPIO_ODR  = 0x0C
	GPIO_BSRR = 0x10
	GPIO_BRR  = 0x14
	GPIO_LCKR = 0x18
	GPIOSize  = 0x1C

	// Every pin resets to floating input (CNF=01, MODE=00).
	GPIO_CR_Reset = 0x4444_4444
)

// Pin MODE values. Input is the only mode where CNF selects an input type.
const (
	GPIO_MODE_Input     = 0b00
	GPIO_MODE_Output10M = 0b01
	GPIO_MODE_Output2M  = 0b10
	GPIO_MODE_Output50M = 0b11
)

// Pin CNF values for input mode.
const (
	GPIO_CNF_InAnalog   = 0b00
	GPIO_CNF_InFloating = 0b01
	GPIO_CNF_InPull     = 0b10
)

// Pin CNF values for output modes.
const (
	GPIO_CNF_OutPushPull  = 0b00
	GPIO_CNF_OutOpenDrain = 0b01
	GPIO_CNF_AltPushPull  = 0b10
	GPIO_CNF_AltOpenDrain = 0b11
)

// GPIO_CR_MODE is the MODE field of pin (0-15) in CRL (pins 0-7) or CRH (pins 8-15).
func GPIO_CR_MODE(pin int) mmio.Field {
	return mmio.Field{Pos: uint8(4 * (pin % 8)), Width: 2}
}

// GPIO_CR_CNF is the CNF field of pin in CRL or CRH.
func GPIO_CR_CNF(pin int) mmio.Field {
	return mmio.Field{Pos: uint8(4*(pin%8) + 2), Width: 2}
}

// PA2 (USART2_TX) configuration bits in GPIOA.CRL.
const (
	GPIO_CRL_MODE2_Pos = 8
	GPIO_CRL_MODE2_Msk = 0x3 << GPIO_CRL_MODE2_Pos
	GPIO_CRL_MODE2_0   = 0x1 << GPIO_CRL_MODE2_Pos
	GPIO_CRL_CNF2_Pos  = 10
	GPIO_CRL_CNF2_Msk  = 0x3 << GPIO_CRL_CNF2_Pos
	GPIO_CRL_CNF2_1    = 0x2 << GPIO_CRL_CNF2_Pos
)

// USART2 pins on port A.
const (
	PinUSART2TX = 2
	PinUSART2RX = 3
)

// USART register offsets.
const (
	USART_SR   = 0x00
	USART_DR   = 0x04
	USART_BRR  = 0x08
	USART_CR1  = 0x0C
	USART_CR2  = 0x10
	USART_CR3  = 0x14
	USART_GTPR = 0x18
	USARTSize  = 0x1C
)

// USART status register bits.
const (
	USART_SR_PE   = 1 << 0
	USART_SR_FE   = 1 << 1
	USART_SR_NE   = 1 << 2
	USART_SR_ORE  = 1 << 3
	USART_SR_IDLE = 1 << 4
	USART_SR_RXNE = 1 << 5
	USART_SR_TC   = 1 << 6
	USART_SR_TXE  = 1 << 7
	USART_SR_LBD  = 1 << 8
	USART_SR_CTS  = 1 << 9

	USART_SR_Errors = USART_SR_PE | USART_SR_FE | USART_SR_NE | USART_SR_ORE
	USART_SR_Reset  = USART_SR_TXE | USART_SR_TC
)

// USART control register 1 bits.
const (
	USART_CR1_SBK    = 1 << 0
	USART_CR1_RWU    = 1 << 1
	USART_CR1_RE     = 1 << 2
	USART_CR1_TE     = 1 << 3
	USART_CR1_IDLEIE = 1 << 4
	USART_CR1_RXNEIE = 1 << 5
	USART_CR1_TCIE   = 1 << 6
	USART_CR1_TXEIE  = 1 << 7
	USART_CR1_PEIE   = 1 << 8
	USART_CR1_PS     = 1 << 9
	USART_CR1_PCE    = 1 << 10
	USART_CR1_WAKE   = 1 << 11
	USART_CR1_M      = 1 << 12
	USART_CR1_UE     = 1 << 13
)

// USART baud rate register fields.
var (
	USART_BRR_DIV_Fraction = mmio.Field{Pos: 0, Width: 4}
	USART_BRR_DIV_Mantissa = mmio.Field{Pos: 4, Width: 12}
)

// USART data register field. Bit 8 is only used with 9-bit words.
var USART_DR_DR = mmio.Field{Pos: 0, Width: 9}

// RCC is the reset and clock control block.
type RCC struct {
	CR       mmio.Reg
	CFGR     mmio.Reg
	CIR      mmio.Reg
	APB2RSTR mmio.Reg
	APB1RSTR mmio.Reg
	AHBENR   mmio.Reg
	APB2ENR  mmio.Reg
	APB1ENR  mmio.Reg
	BDCR     mmio.Reg
	CSR      mmio.Reg
}

func NewRCC(bus mmio.Bus, base uint32) *RCC {
	return &RCC{
		CR:       mmio.NewReg(bus, base+RCC_CR),
		CFGR:     mmio.NewReg(bus, base+RCC_CFGR),
		CIR:      mmio.NewReg(bus, base+RCC_CIR),
		APB2RSTR: mmio.NewReg(bus, base+RCC_APB2RSTR),
		APB1RSTR: mmio.NewReg(bus, base+RCC_APB1RSTR),
		AHBENR:   mmio.NewReg(bus, base+RCC_AHBENR),
		APB2ENR:  mmio.NewReg(bus, base+RCC_APB2ENR),
		APB1ENR:  mmio.NewReg(bus, base+RCC_APB1ENR),
		BDCR:     mmio.NewReg(bus, base+RCC_BDCR),
		CSR:      mmio.NewReg(bus, base+RCC_CSR),
	}
}

// GPIO is one general purpose I/O port.
type GPIO struct {
	CRL  mmio.Reg
	CRH  mmio.Reg
	IDR  mmio.Reg
	ODR  mmio.Reg
	BSRR mmio.Reg
	BRR  mmio.Reg
	LCKR mmio.Reg
}

func NewGPIO(bus mmio.Bus, base uint32) *GPIO {
	return &GPIO{
		CRL:  mmio.NewReg(bus, base+GPIO_CRL),
		CRH:  mmio.NewReg(bus, base+GPIO_CRH),
		IDR:  mmio.NewReg(bus, base+GPIO_IDR),
		ODR:  mmio.NewReg(bus, base+GPIO_ODR),
		BSRR: mmio.NewReg(bus, base+GPIO_BSRR),
		BRR:  mmio.NewReg(bus, base+GPIO_BRR),
		LCKR: mmio.NewReg(bus, base+GPIO_LCKR),
	}
}

// ConfigReg returns CRL for pins 0-7 and CRH for pins 8-15.
func (g *GPIO) ConfigReg(pin int) mmio.Reg {
	if pin < 8 {
		return g.CRL
	}
	return g.CRH
}

// USART is one universal synchronous/asynchronous transceiver.
type USART struct {
	SR   mmio.Reg
	DR   mmio.Reg
	BRR  mmio.Reg
	CR1  mmio.Reg
	CR2  mmio.Reg
	CR3  mmio.Reg
	GTPR mmio.Reg
}

func NewUSART(bus mmio.Bus, base uint32) *USART {
	return &USART{
		SR:   mmio.NewReg(bus, base+USART_SR),
		DR:   mmio.NewReg(bus, base+USART_DR),
		BRR:  mmio.NewReg(bus, base+USART_BRR),
		CR1:  mmio.NewReg(bus, base+USART_CR1),
		CR2:  mmio.NewReg(bus, base+USART_CR2),
		CR3:  mmio.NewReg(bus, base+USART_CR3),
		GTPR: mmio.NewReg(bus, base+USART_GTPR),
	}
}

// Device is the set of peripherals the serial console touches. It holds
// the only handle to those registers and is not safe for concurrent use.
type Device struct {
	RCC    *RCC
	GPIOA  *GPIO
	USART2 *USART
}

// NewDevice binds the register blocks to bus at their reset addresses.
func NewDevice(bus mmio.Bus) *Device {
	return &Device{
		RCC:    NewRCC(bus, RCCBase),
		GPIOA:  NewGPIO(bus, GPIOABase),
		USART2: NewUSART(bus, USART2Base),
	}
}
