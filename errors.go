package uart

import "errors"

var (
	ErrInvalidBaud  = errors.New("uart: invalid clock or baud rate")
	ErrDivisorRange = errors.New("uart: baud divisor out of range")
)

// Receive errors reported by LineStatus. The polled primitives never look
// at them.
var (
	ErrParity  = errors.New("uart: parity error")
	ErrFraming = errors.New("uart: framing error")
	ErrNoise   = errors.New("uart: noise error")
	ErrOverrun = errors.New("uart: overrun error")
)
