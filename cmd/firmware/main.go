//go:build tinygo

// Command firmware is the echo console itself, built with TinyGo for an
// STM32F103 board:
//
//	tinygo flash -target bluepill ./cmd/firmware
//
// It talks to the chip's registers directly and never returns.
package main

import (
	uart "github.com/luhtfiimanal/go-stm32-uart"
	"github.com/luhtfiimanal/go-stm32-uart/mmio"
	"github.com/luhtfiimanal/go-stm32-uart/stm32f1"
)

// TinyGo's bluepill runtime runs the PLL from the 8 MHz crystal before
// main: SYSCLK is 72 MHz and APB1, which clocks USART2, is 36 MHz.
const pclk1Hz = 36_000_000

func main() {
	cfg := uart.Config{ClockHz: pclk1Hz, Baud: uart.DefaultBaud}
	drv, err := uart.New(stm32f1.NewDevice(mmio.Direct{}), cfg)
	if err != nil {
		// Nothing to report it on.
		for {
		}
	}
	drv.Init()
	uart.Run(drv)
}
