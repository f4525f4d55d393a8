// Package hostline connects the simulated serial line to the host: the
// process's terminal, a pseudo-terminal, or a real serial port.
//
// The tty, pty and terminal endpoints use Linux termios and are Linux
// only; elsewhere their constructors return ErrUnsupported. Serial ports
// and Bridge work wherever go.bug.st/serial does.
package hostline

import (
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

var (
	ErrClosed      = errors.New("hostline: closed")
	ErrUnsupported = errors.New("hostline: not supported on this platform")
)

// Bridge copies bytes both ways between the device end of a serial line
// and a host endpoint until either side fails or Close is called.
type Bridge struct {
	log    zerolog.Logger
	device io.ReadWriteCloser
	host   io.ReadWriteCloser

	closed atomic.Bool
	toHost atomic.Uint64
	toDev  atomic.Uint64

	errCh chan error
	wg    sync.WaitGroup
}

// NewBridge pairs device (usually a sim.Line) with host.
func NewBridge(device, host io.ReadWriteCloser, log zerolog.Logger) *Bridge {
	return &Bridge{
		log:    log.With().Str("component", "bridge").Logger(),
		device: device,
		host:   host,
		errCh:  make(chan error, 2),
	}
}

// Start launches the two pumps.
func (b *Bridge) Start() {
	b.wg.Add(2)
	go b.pump("device->host", b.host, b.device, &b.toHost)
	go b.pump("host->device", b.device, b.host, &b.toDev)
}

func (b *Bridge) pump(dir string, dst io.Writer, src io.Reader, count *atomic.Uint64) {
	defer b.wg.Done()

	buf := make([]byte, 256)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				b.fail(dir, werr)
				return
			}
			count.Add(uint64(n))
			b.log.Trace().Str("dir", dir).Int("n", n).Msg("copied")
		}
		if err != nil {
			b.fail(dir, err)
			return
		}
	}
}

func (b *Bridge) fail(dir string, err error) {
	if b.closed.Load() {
		return
	}
	b.log.Debug().Str("dir", dir).Err(err).Msg("pump stopped")
	select {
	case b.errCh <- err:
	default:
	}
}

// Err delivers the first error that stopped a pump. io.EOF from the host
// means its input ended.
func (b *Bridge) Err() <-chan error { return b.errCh }

// Stats returns the bytes copied to the host and to the device.
func (b *Bridge) Stats() (toHost, toDevice uint64) {
	return b.toHost.Load(), b.toDev.Load()
}

// Close closes both ends and waits for the pumps to stop.
// Safe to call multiple times.
func (b *Bridge) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	err := b.device.Close()
	if herr := b.host.Close(); err == nil {
		err = herr
	}
	b.wg.Wait()
	return err
}
