//go:build linux

package hostline_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uart "github.com/luhtfiimanal/go-stm32-uart"
	"github.com/luhtfiimanal/go-stm32-uart/hostline"
	"github.com/luhtfiimanal/go-stm32-uart/sim"
)

const banner = "Hello World!\n" + uart.Prompt + "\n"

// collect reads r in the background and returns a func that waits until
// the bytes seen so far end with want.
func collect(t *testing.T, r io.Reader) func(want string) {
	t.Helper()
	chunks := make(chan []byte, 64)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunks <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				close(chunks)
				return
			}
		}
	}()

	var seen []byte
	return func(want string) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for !bytes.HasSuffix(seen, []byte(want)) {
			select {
			case c, ok := <-chunks:
				if !ok {
					t.Fatalf("reader stopped; got %q, want suffix %q", seen, want)
				}
				seen = append(seen, c...)
			case <-deadline:
				t.Fatalf("timeout; got %q, want suffix %q", seen, want)
			}
		}
		seen = seen[:0]
	}
}

func startFirmware(t *testing.T, m *sim.Machine) {
	t.Helper()
	drv, err := uart.New(m.Device(), uart.DefaultConfig())
	require.NoError(t, err)
	drv.Init()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- uart.Serve(ctx, drv) }()
	t.Cleanup(func() {
		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
	})
}

func TestBridge_PTYEcho(t *testing.T) {
	m := sim.New(sim.Config{TxLatency: 2}, zerolog.Nop())
	t.Cleanup(func() { m.Close() })

	p, err := hostline.OpenPTY()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Name(), "/dev/"))

	b := hostline.NewBridge(m.Line(), p, zerolog.Nop())
	b.Start()
	t.Cleanup(func() { b.Close() })

	term, err := hostline.OpenTTY(hostline.Config{Device: p.Name(), BaudRate: 115200})
	require.NoError(t, err)
	t.Cleanup(func() { term.Close() })
	expect := collect(t, term)

	startFirmware(t, m)
	expect(banner)

	_, err = term.Write([]byte("ok\r"))
	require.NoError(t, err)
	expect("ok\r" + uart.ReturnMarker + "\n")

	_, err = term.Write([]byte("x"))
	require.NoError(t, err)
	expect("x")

	// Counters move just after each write lands.
	assert.Eventually(t, func() bool {
		toHost, toDev := b.Stats()
		return toHost == uint64(len(banner)+len("ok\r<RETURN>\n")+1) && toDev == 4
	}, time.Second, 5*time.Millisecond)
}

func TestBridge_HostEOF(t *testing.T) {
	m := sim.New(sim.Config{}, zerolog.Nop())
	t.Cleanup(func() { m.Close() })

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	in, err := hostline.OpenStdio(r, os.Stderr)
	require.NoError(t, err)
	assert.False(t, in.IsTerminal())

	b := hostline.NewBridge(m.Line(), in, zerolog.Nop())
	b.Start()
	defer b.Close()

	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	select {
	case err := <-b.Err():
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for host EOF")
	}

	// Nothing has read the RX wire yet, so the machine still holds it.
	assert.False(t, m.Idle())
	_, toDev := b.Stats()
	assert.Equal(t, uint64(3), toDev)
}

type stuckHost struct {
	closed chan struct{}
}

func (h *stuckHost) Read(p []byte) (int, error) {
	<-h.closed
	return 0, hostline.ErrClosed
}

func (h *stuckHost) Write(p []byte) (int, error) { return 0, errors.New("unplugged") }

func (h *stuckHost) Close() error {
	close(h.closed)
	return nil
}

func TestBridge_WriteErrorAndClose(t *testing.T) {
	m := sim.New(sim.Config{}, zerolog.Nop())
	t.Cleanup(func() { m.Close() })

	host := &stuckHost{closed: make(chan struct{})}
	b := hostline.NewBridge(m.Line(), host, zerolog.Nop())
	b.Start()

	startFirmware(t, m)

	select {
	case err := <-b.Err():
		require.EqualError(t, err, "unplugged")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for write error")
	}

	done := make(chan struct{})
	go func() {
		assert.NoError(t, b.Close())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not stop the pumps")
	}
	// Errors caused by Close itself are not reported.
	select {
	case err := <-b.Err():
		t.Fatalf("unexpected error after Close: %v", err)
	default:
	}
	require.NoError(t, b.Close())
}
