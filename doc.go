// Package uart is a minimal polled serial console for the STM32F103.
//
// It drives USART2 on pins PA2 (TX) and PA3 (RX) with nothing but the
// peripheral's own registers: no interrupts, no buffering, no flow
// control. Every byte is sent by spinning on TXE and received by
// spinning on RXNE.
//
// Features:
//   - Register-exact bring-up: clocks, baud divisor, USART enable, TX pin
//   - Blocking byte and line primitives, plus context-bounded variants
//   - The echo firmware: greeting, then echo with a marker after every CR
//   - Runs on any mmio.Bus, so the same code drives hardware or the simulator
//
// On the chip the bus is mmio.Direct; cmd/firmware is that build, made
// with TinyGo.
//
// Example usage with the simulator from package sim:
//
//	m := sim.New(sim.Config{}, zerolog.Nop())
//	defer m.Close()
//
//	drv, err := uart.New(m.Device(), uart.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	drv.Init()
//
//	// Blocks forever, exactly like the firmware on the chip.
//	uart.Run(drv)
package uart
