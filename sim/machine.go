// Package sim simulates the STM32F103 peripherals the serial console
// uses, at register level.
//
// Address map (everything else faults and reads as zero):
//
//	RCC     0x4002_1000 .. 0x4002_1027
//	GPIOA   0x4001_0800 .. 0x4001_081B
//	USART2  0x4000_4400 .. 0x4000_441B
//
// GPIOA and USART2 ignore writes and read as zero until their clock is
// enabled in RCC, as on the chip. The USART transmits only while UE and
// TE are set and receives only while UE and RE are set.
package sim

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/luhtfiimanal/go-stm32-uart/stm32f1"
)

const DefaultTxQueue = 4096

// Config tunes the simulated USART.
type Config struct {
	// TxLatency is the number of SR reads it takes a byte loaded into DR
	// to leave the transmitter. Zero means it leaves on the write.
	TxLatency int
	// TxQueue bounds the bytes on the line that the host has not read
	// yet. While it is full the transmitter stalls with TXE clear.
	TxQueue int
	// Trace records every bus access for later inspection.
	Trace bool
}

// Machine is the simulated register bus. It implements mmio.Bus and is
// safe for concurrent use: the firmware polls it from one goroutine while
// host pumps feed and drain the line from others.
type Machine struct {
	cfg Config
	log zerolog.Logger

	mu    sync.Mutex
	rcc   [stm32f1.RCCSize / 4]uint32
	gpioa [stm32f1.GPIOSize / 4]uint32
	usart [stm32f1.USARTSize / 4]uint32

	tdr      byte
	txLoaded bool
	txWait   int
	rdr      byte
	wire     []byte
	trace    []Access

	out       chan byte
	closed    chan struct{}
	closeOnce sync.Once

	loads  atomic.Uint64
	stores atomic.Uint64
	faults atomic.Uint64
}

// New returns a machine in its reset state.
func New(cfg Config, log zerolog.Logger) *Machine {
	if cfg.TxQueue <= 0 {
		cfg.TxQueue = DefaultTxQueue
	}
	if cfg.TxLatency < 0 {
		cfg.TxLatency = 0
	}
	m := &Machine{
		cfg:    cfg,
		log:    log.With().Str("component", "sim").Logger(),
		out:    make(chan byte, cfg.TxQueue),
		closed: make(chan struct{}),
	}
	m.reset()
	return m
}

func (m *Machine) reset() {
	m.rcc = [len(m.rcc)]uint32{}
	m.rcc[stm32f1.RCC_CR/4] = stm32f1.RCC_CR_Reset
	m.gpioa = [len(m.gpioa)]uint32{}
	m.gpioa[stm32f1.GPIO_CRL/4] = stm32f1.GPIO_CR_Reset
	m.gpioa[stm32f1.GPIO_CRH/4] = stm32f1.GPIO_CR_Reset
	m.usart = [len(m.usart)]uint32{}
	m.usart[stm32f1.USART_SR/4] = stm32f1.USART_SR_Reset
	m.txLoaded, m.txWait, m.tdr, m.rdr = false, 0, 0, 0
}

// Device returns the register handle firmware code drives.
func (m *Machine) Device() *stm32f1.Device {
	return stm32f1.NewDevice(m)
}

// Load32 implements mmio.Bus.
func (m *Machine) Load32(addr uint32) uint32 {
	m.loads.Inc()

	m.mu.Lock()
	v := m.load(addr)
	if m.cfg.Trace {
		m.trace = append(m.trace, Access{Op: OpLoad, Addr: addr, Value: v})
	}
	m.mu.Unlock()

	// A firmware spin loop must not starve the goroutines feeding the line.
	if addr == stm32f1.USART2Base+stm32f1.USART_SR && v&(stm32f1.USART_SR_TXE|stm32f1.USART_SR_RXNE) != stm32f1.USART_SR_TXE|stm32f1.USART_SR_RXNE {
		runtime.Gosched()
	}
	return v
}

// Store32 implements mmio.Bus.
func (m *Machine) Store32(addr uint32, v uint32) {
	m.stores.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.Trace {
		m.trace = append(m.trace, Access{Op: OpStore, Addr: addr, Value: v})
	}
	m.log.Trace().Str("reg", RegName(addr)).Str("value", hex32(v)).Msg("store")
	m.store(addr, v)
}

func (m *Machine) load(addr uint32) uint32 {
	blk, off, ok := m.decode(addr)
	if !ok {
		return 0
	}
	switch blk {
	case blockRCC:
		return m.rcc[off/4]
	case blockGPIOA:
		if !m.gpioaClocked() {
			return 0
		}
		return m.gpioa[off/4]
	}

	if !m.usartClocked() {
		return 0
	}
	switch off {
	case stm32f1.USART_SR:
		m.tick()
	case stm32f1.USART_DR:
		// Reading DR clears RXNE and, after an SR read, the error flags.
		m.usart[stm32f1.USART_SR/4] &^= stm32f1.USART_SR_RXNE | stm32f1.USART_SR_Errors
		return uint32(m.rdr)
	}
	return m.usart[off/4]
}

func (m *Machine) store(addr uint32, v uint32) {
	blk, off, ok := m.decode(addr)
	if !ok {
		return
	}
	switch blk {
	case blockRCC:
		m.rcc[off/4] = v
		return
	case blockGPIOA:
		if !m.gpioaClocked() {
			m.log.Debug().Str("reg", RegName(addr)).Msg("write ignored, GPIOA clock off")
			return
		}
		m.gpioa[off/4] = v
		return
	}

	if !m.usartClocked() {
		m.log.Debug().Str("reg", RegName(addr)).Msg("write ignored, USART2 clock off")
		return
	}
	switch off {
	case stm32f1.USART_SR:
		// RXNE and TC are cleared by writing zero; the rest is read-only.
		const rcw0 = stm32f1.USART_SR_RXNE | stm32f1.USART_SR_TC
		m.usart[off/4] &^= ^v & rcw0
	case stm32f1.USART_DR:
		m.transmit(byte(v))
	default:
		m.usart[off/4] = v
	}
}

func (m *Machine) transmit(c byte) {
	if !m.cr1(stm32f1.USART_CR1_UE | stm32f1.USART_CR1_TE) {
		m.log.Debug().Uint8("byte", c).Msg("transmitter disabled, byte dropped")
		return
	}
	if m.txLoaded {
		m.log.Debug().Uint8("lost", m.tdr).Msg("DR written while TXE clear")
	}
	m.tdr = c
	m.txLoaded = true
	m.txWait = m.cfg.TxLatency
	m.usart[stm32f1.USART_SR/4] &^= stm32f1.USART_SR_TXE | stm32f1.USART_SR_TC
	if m.txWait == 0 {
		m.shiftOut()
	}
}

// tick advances the transmitter and receiver by one SR poll.
func (m *Machine) tick() {
	if m.txLoaded {
		if m.txWait > 0 {
			m.txWait--
		}
		if m.txWait == 0 {
			m.shiftOut()
		}
	}

	sr := &m.usart[stm32f1.USART_SR/4]
	if *sr&stm32f1.USART_SR_RXNE == 0 && len(m.wire) > 0 && m.cr1(stm32f1.USART_CR1_UE|stm32f1.USART_CR1_RE) {
		m.rdr = m.wire[0]
		m.wire = m.wire[1:]
		*sr |= stm32f1.USART_SR_RXNE
	}
}

func (m *Machine) shiftOut() {
	select {
	case m.out <- m.tdr:
		m.txLoaded = false
		m.usart[stm32f1.USART_SR/4] |= stm32f1.USART_SR_TXE | stm32f1.USART_SR_TC
	default:
		// Line full; retry on the next poll.
	}
}

func (m *Machine) cr1(bits uint32) bool {
	return m.usart[stm32f1.USART_CR1/4]&bits == bits
}

func (m *Machine) gpioaClocked() bool {
	return m.rcc[stm32f1.RCC_APB2ENR/4]&stm32f1.RCC_APB2ENR_IOPAEN != 0
}

func (m *Machine) usartClocked() bool {
	return m.rcc[stm32f1.RCC_APB1ENR/4]&stm32f1.RCC_APB1ENR_USART2EN != 0
}

type block uint8

const (
	blockRCC block = iota
	blockGPIOA
	blockUSART2
)

func (m *Machine) decode(addr uint32) (block, uint32, bool) {
	var blk block
	var off uint32
	switch {
	case addr >= stm32f1.RCCBase && addr < stm32f1.RCCBase+stm32f1.RCCSize:
		blk, off = blockRCC, addr-stm32f1.RCCBase
	case addr >= stm32f1.GPIOABase && addr < stm32f1.GPIOABase+stm32f1.GPIOSize:
		blk, off = blockGPIOA, addr-stm32f1.GPIOABase
	case addr >= stm32f1.USART2Base && addr < stm32f1.USART2Base+stm32f1.USARTSize:
		blk, off = blockUSART2, addr-stm32f1.USART2Base
	default:
		m.fault(addr, "unmapped")
		return 0, 0, false
	}
	if off%4 != 0 {
		m.fault(addr, "unaligned")
		return 0, 0, false
	}
	return blk, off, true
}

func (m *Machine) fault(addr uint32, why string) {
	m.faults.Inc()
	m.log.Warn().Str("addr", hex32(addr)).Msg("bus fault: " + why)
}

// Feed puts bytes on the RX wire. They reach DR one at a time, each once
// the firmware has read the previous one.
func (m *Machine) Feed(p []byte) {
	m.mu.Lock()
	m.wire = append(m.wire, p...)
	m.mu.Unlock()
}

// InjectErrors raises receive error flags (PE, FE, NE, ORE) in SR. Other
// bits in flags are ignored.
func (m *Machine) InjectErrors(flags uint32) {
	m.mu.Lock()
	m.usart[stm32f1.USART_SR/4] |= flags & stm32f1.USART_SR_Errors
	m.mu.Unlock()
}

// Output is the TX wire: every byte the USART has shifted out.
func (m *Machine) Output() <-chan byte { return m.out }

// TakeOutput lets a byte still sitting in DR leave, then returns every
// byte on the TX wire without blocking.
func (m *Machine) TakeOutput() []byte {
	m.mu.Lock()
	if m.txLoaded {
		m.shiftOut()
	}
	m.mu.Unlock()

	var got []byte
	for {
		select {
		case c := <-m.out:
			got = append(got, c)
		default:
			return got
		}
	}
}

// Peek returns the stored value at addr with no side effect and no clock
// gating. SR includes the live flags.
func (m *Machine) Peek(addr uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case addr >= stm32f1.RCCBase && addr < stm32f1.RCCBase+stm32f1.RCCSize:
		return m.rcc[(addr-stm32f1.RCCBase)/4]
	case addr >= stm32f1.GPIOABase && addr < stm32f1.GPIOABase+stm32f1.GPIOSize:
		return m.gpioa[(addr-stm32f1.GPIOABase)/4]
	case addr >= stm32f1.USART2Base && addr < stm32f1.USART2Base+stm32f1.USARTSize:
		return m.usart[(addr-stm32f1.USART2Base)/4]
	}
	return 0
}

// Idle reports whether every byte fed in has been read by the firmware
// and every byte sent has been taken off the TX wire.
func (m *Machine) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.wire) == 0 &&
		m.usart[stm32f1.USART_SR/4]&stm32f1.USART_SR_RXNE == 0 &&
		!m.txLoaded &&
		len(m.out) == 0
}

// Reset returns every register to its reset value. Bytes on the wires
// are kept.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.reset()
	m.mu.Unlock()
	m.log.Debug().Msg("reset")
}

// Trace returns a copy of the recorded accesses.
func (m *Machine) Trace() []Access {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Access(nil), m.trace...)
}

// SetTrace turns access recording on or off. Recorded accesses are kept.
func (m *Machine) SetTrace(on bool) {
	m.mu.Lock()
	m.cfg.Trace = on
	m.mu.Unlock()
}

// ClearTrace drops the recorded accesses.
func (m *Machine) ClearTrace() {
	m.mu.Lock()
	m.trace = nil
	m.mu.Unlock()
}

// Stats counts bus traffic.
type Stats struct {
	Loads  uint64
	Stores uint64
	Faults uint64
}

func (m *Machine) Stats() Stats {
	return Stats{
		Loads:  m.loads.Load(),
		Stores: m.stores.Load(),
		Faults: m.faults.Load(),
	}
}

// Close ends every pending Line read. The registers stay usable.
func (m *Machine) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func hex32(v uint32) string {
	return fmt.Sprintf("%#08x", v)
}
