package stm32f1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordBus struct {
	loads []uint32
}

func (r *recordBus) Load32(addr uint32) uint32 {
	r.loads = append(r.loads, addr)
	return 0
}

func (r *recordBus) Store32(addr uint32, v uint32) {}

func TestMemoryMap(t *testing.T) {
	require.Equal(t, uint32(0x4000_4400), uint32(USART2Base))
	require.Equal(t, uint32(0x4001_0800), uint32(GPIOABase))
	require.Equal(t, uint32(0x4002_1000), uint32(RCCBase))

	dev := NewDevice(&recordBus{})
	require.Equal(t, uint32(0x4002_1018), dev.RCC.APB2ENR.Addr())
	require.Equal(t, uint32(0x4002_101C), dev.RCC.APB1ENR.Addr())
	require.Equal(t, uint32(0x4001_0800), dev.GPIOA.CRL.Addr())
	require.Equal(t, uint32(0x4001_0804), dev.GPIOA.CRH.Addr())
	require.Equal(t, uint32(0x4000_4400), dev.USART2.SR.Addr())
	require.Equal(t, uint32(0x4000_4404), dev.USART2.DR.Addr())
	require.Equal(t, uint32(0x4000_4408), dev.USART2.BRR.Addr())
	require.Equal(t, uint32(0x4000_440C), dev.USART2.CR1.Addr())
}

func TestPinConfigFields(t *testing.T) {
	require.Equal(t, uint32(GPIO_CRL_MODE2_Msk), GPIO_CR_MODE(PinUSART2TX).Mask())
	require.Equal(t, uint32(GPIO_CRL_CNF2_Msk), GPIO_CR_CNF(PinUSART2TX).Mask())
	require.Equal(t, uint32(GPIO_CRL_CNF2_1), GPIO_CR_CNF(PinUSART2TX).Value(GPIO_CNF_AltPushPull))
	require.Equal(t, uint32(GPIO_CRL_MODE2_0), GPIO_CR_MODE(PinUSART2TX).Value(GPIO_MODE_Output10M))

	// Pins 8-15 reuse the same nibble layout in CRH.
	require.Equal(t, GPIO_CR_MODE(1), GPIO_CR_MODE(9))

	// The reset nibble of every pin is a floating input.
	require.Equal(t, uint32(GPIO_CNF_InFloating), GPIO_CR_CNF(PinUSART2RX).Get(GPIO_CR_Reset))
	require.Equal(t, uint32(GPIO_MODE_Input), GPIO_CR_MODE(PinUSART2RX).Get(GPIO_CR_Reset))
}

func TestConfigReg(t *testing.T) {
	dev := NewDevice(&recordBus{})
	require.Equal(t, dev.GPIOA.CRL.Addr(), dev.GPIOA.ConfigReg(PinUSART2TX).Addr())
	require.Equal(t, dev.GPIOA.CRH.Addr(), dev.GPIOA.ConfigReg(10).Addr())
}

func TestUSARTBits(t *testing.T) {
	require.Equal(t, uint32(0x2000|0x8|0x4), uint32(USART_CR1_UE|USART_CR1_TE|USART_CR1_RE))
	require.Equal(t, uint32(0xC0), uint32(USART_SR_Reset))
	require.Equal(t, uint32(0x0F), uint32(USART_SR_Errors))
	require.Equal(t, uint32(0x83), uint32(RCC_CR_Reset))

	// Only the low nine bits of DR carry data.
	require.Equal(t, uint32(0x1A5), USART_DR_DR.Get(0xFFFF_F1A5))
}
