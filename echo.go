package uart

import "context"

// Text the echo firmware prints.
const (
	Greeting     = "ello World!"
	Prompt       = "Now type stuff on the terminal to be echoed..."
	ReturnMarker = "<RETURN>"
)

// Port is the byte-level surface the echo loop runs on. *Driver
// implements it.
type Port interface {
	SendByte(c byte) byte
	SendLine(s string) bool
	ReceiveByte() byte
}

// ContextPort is a Port whose waits can be abandoned.
type ContextPort interface {
	SendByteContext(ctx context.Context, c byte) (byte, error)
	SendLineContext(ctx context.Context, s string) error
	ReceiveByteContext(ctx context.Context) (byte, error)
}

// Banner prints the greeting: a lone 'H', then the rest of the line, then
// the prompt.
func Banner(p Port) {
	p.SendByte('H')
	p.SendLine(Greeting)
	p.SendLine(Prompt)
}

// Step echoes one received byte. A carriage return is followed by the
// return marker line.
func Step(p Port) byte {
	c := p.ReceiveByte()
	p.SendByte(c)
	if c == '\r' {
		p.SendLine(ReturnMarker)
	}
	return c
}

// Run is the firmware main loop. It never returns.
func Run(p Port) {
	Banner(p)
	for {
		Step(p)
	}
}

// BannerContext is Banner with every wait bounded by ctx.
func BannerContext(ctx context.Context, p ContextPort) error {
	if _, err := p.SendByteContext(ctx, 'H'); err != nil {
		return err
	}
	if err := p.SendLineContext(ctx, Greeting); err != nil {
		return err
	}
	return p.SendLineContext(ctx, Prompt)
}

// StepContext is Step with every wait bounded by ctx.
func StepContext(ctx context.Context, p ContextPort) (byte, error) {
	c, err := p.ReceiveByteContext(ctx)
	if err != nil {
		return 0, err
	}
	if _, err = p.SendByteContext(ctx, c); err != nil {
		return c, err
	}
	if c == '\r' {
		err = p.SendLineContext(ctx, ReturnMarker)
	}
	return c, err
}

// Serve runs the same loop as Run until ctx is done, then returns
// ctx.Err().
func Serve(ctx context.Context, p ContextPort) error {
	if err := BannerContext(ctx, p); err != nil {
		return err
	}
	for {
		if _, err := StepContext(ctx, p); err != nil {
			return err
		}
	}
}
