package sim

import (
	"fmt"

	"github.com/luhtfiimanal/go-stm32-uart/stm32f1"
)

type Op uint8

const (
	OpLoad Op = iota
	OpStore
)

func (o Op) String() string {
	if o == OpStore {
		return "store"
	}
	return "load"
}

// Access is one recorded bus access.
type Access struct {
	Op    Op
	Addr  uint32
	Value uint32
}

func (a Access) String() string {
	return fmt.Sprintf("%s %s %#08x", a.Op, RegName(a.Addr), a.Value)
}

var regNames = map[uint32]string{
	stm32f1.RCCBase + stm32f1.RCC_CR:       "RCC.CR",
	stm32f1.RCCBase + stm32f1.RCC_CFGR:     "RCC.CFGR",
	stm32f1.RCCBase + stm32f1.RCC_CIR:      "RCC.CIR",
	stm32f1.RCCBase + stm32f1.RCC_APB2RSTR: "RCC.APB2RSTR",
	stm32f1.RCCBase + stm32f1.RCC_APB1RSTR: "RCC.APB1RSTR",
	stm32f1.RCCBase + stm32f1.RCC_AHBENR:   "RCC.AHBENR",
	stm32f1.RCCBase + stm32f1.RCC_APB2ENR:  "RCC.APB2ENR",
	stm32f1.RCCBase + stm32f1.RCC_APB1ENR:  "RCC.APB1ENR",
	stm32f1.RCCBase + stm32f1.RCC_BDCR:     "RCC.BDCR",
	stm32f1.RCCBase + stm32f1.RCC_CSR:      "RCC.CSR",

	stm32f1.GPIOABase + stm32f1.GPIO_CRL:  "GPIOA.CRL",
	stm32f1.GPIOABase + stm32f1.GPIO_CRH:  "GPIOA.CRH",
	stm32f1.GPIOABase + stm32f1.GPIO_IDR:  "GPIOA.IDR",
	stm32f1.GPIOABase + stm32f1.GPIO_ODR:  "GPIOA.ODR",
	stm32f1.GPIOABase + stm32f1.GPIO_BSRR: "GPIOA.BSRR",
	stm32f1.GPIOABase + stm32f1.GPIO_BRR:  "GPIOA.BRR",
	stm32f1.GPIOABase + stm32f1.GPIO_LCKR: "GPIOA.LCKR",

	stm32f1.USART2Base + stm32f1.USART_SR:   "USART2.SR",
	stm32f1.USART2Base + stm32f1.USART_DR:   "USART2.DR",
	stm32f1.USART2Base + stm32f1.USART_BRR:  "USART2.BRR",
	stm32f1.USART2Base + stm32f1.USART_CR1:  "USART2.CR1",
	stm32f1.USART2Base + stm32f1.USART_CR2:  "USART2.CR2",
	stm32f1.USART2Base + stm32f1.USART_CR3:  "USART2.CR3",
	stm32f1.USART2Base + stm32f1.USART_GTPR: "USART2.GTPR",
}

// RegName returns the register at addr as "BLOCK.REG", or the address in
// hex when nothing is mapped there.
func RegName(addr uint32) string {
	if name, ok := regNames[addr]; ok {
		return name
	}
	return hex32(addr)
}
