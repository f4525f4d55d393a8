package uart

import (
	"fmt"

	"github.com/luhtfiimanal/go-stm32-uart/stm32f1"
)

const (
	DefaultClockHz = stm32f1.HSIFrequency
	DefaultBaud    = 115_200

	maxMantissa = 1<<12 - 1
	maxFraction = 1<<4 - 1
)

// Divisor is the USARTDIV value programmed into BRR: a 12-bit integer
// part and a fraction in sixteenths.
type Divisor struct {
	Mantissa uint16
	Fraction uint8
}

// Divisor8MHz115200 is the divisor the console ships with.
var Divisor8MHz115200 = Divisor{Mantissa: 4, Fraction: 5}

// Divisors8MHz are the precomputed divisors for an 8 MHz peripheral clock.
var Divisors8MHz = map[uint32]Divisor{
	9_600:   {Mantissa: 52, Fraction: 1},
	115_200: {Mantissa: 4, Fraction: 5},
	460_800: {Mantissa: 1, Fraction: 1},
	500_000: {Mantissa: 1, Fraction: 0},
}

// ComputeDivisor derives the divisor for baud from the peripheral clock.
//
// USARTDIV = clockHz / (16 * baud). The mantissa is its integer part and
// the fraction is the remainder in sixteenths, rounded to nearest. A
// fraction that rounds up to 16 carries into the mantissa.
func ComputeDivisor(clockHz, baud uint32) (Divisor, error) {
	if clockHz == 0 || baud == 0 {
		return Divisor{}, fmt.Errorf("%w: clock %d Hz, baud %d", ErrInvalidBaud, clockHz, baud)
	}

	// clockHz / baud is USARTDIV expressed in sixteenths.
	sixteenths := (uint64(clockHz) + uint64(baud)/2) / uint64(baud)
	mantissa := sixteenths >> 4
	if mantissa == 0 || mantissa > maxMantissa {
		return Divisor{}, fmt.Errorf("%w: %d baud from %d Hz needs mantissa %d", ErrDivisorRange, baud, clockHz, mantissa)
	}

	return Divisor{
		Mantissa: uint16(mantissa),
		Fraction: uint8(sixteenths & maxFraction),
	}, nil
}

// DivisorFromBRR decodes a BRR register value.
func DivisorFromBRR(brr uint32) Divisor {
	return Divisor{
		Mantissa: uint16(stm32f1.USART_BRR_DIV_Mantissa.Get(brr)),
		Fraction: uint8(stm32f1.USART_BRR_DIV_Fraction.Get(brr)),
	}
}

// BRR packs the divisor into the layout of the BRR register.
func (d Divisor) BRR() uint32 {
	return stm32f1.USART_BRR_DIV_Mantissa.Value(uint32(d.Mantissa)) |
		stm32f1.USART_BRR_DIV_Fraction.Value(uint32(d.Fraction))
}

// Valid reports whether the divisor fits BRR and is not zero.
func (d Divisor) Valid() bool {
	return d.Mantissa > 0 && d.Mantissa <= maxMantissa && d.Fraction <= maxFraction
}

// Baud returns the bit rate the divisor produces from clockHz.
func (d Divisor) Baud(clockHz uint32) float64 {
	sixteenths := uint32(d.Mantissa)<<4 | uint32(d.Fraction)
	if sixteenths == 0 {
		return 0
	}
	return float64(clockHz) / float64(sixteenths)
}

// Error returns the relative deviation from the wanted baud rate.
func (d Divisor) Error(clockHz, baud uint32) float64 {
	if baud == 0 {
		return 0
	}
	return (d.Baud(clockHz) - float64(baud)) / float64(baud)
}

func (d Divisor) String() string {
	return fmt.Sprintf("%d/%d", d.Mantissa, d.Fraction)
}
