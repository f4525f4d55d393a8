//go:build linux

package hostline

import (
	"fmt"
	"os"
	"sync"

	"github.com/creack/pty"
)

// PTY is a pseudo-terminal standing in for the board's USB-serial
// adapter. Terminal programs open Name(); the process talks to the
// master side through Read and Write.
type PTY struct {
	master    *os.File
	slave     *os.File
	closeOnce sync.Once
}

// OpenPTY allocates a pseudo-terminal pair with the slave in raw mode, so
// a carriage return typed into a terminal reaches the device unchanged.
//
// The slave stays open for the life of the PTY. Without it, reads on the
// master fail with EIO whenever no terminal is attached.
func OpenPTY() (*PTY, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	if err := setRaw(int(slave.Fd()), baudToUnix(115200)); err != nil {
		master.Close()
		slave.Close()
		return nil, err
	}
	return &PTY{master: master, slave: slave}, nil
}

// Name returns the path of the slave device, e.g. /dev/pts/3.
func (p *PTY) Name() string { return p.slave.Name() }

func (p *PTY) Read(b []byte) (int, error) { return p.master.Read(b) }

func (p *PTY) Write(b []byte) (int, error) { return p.master.Write(b) }

// Close releases both sides. Safe to call multiple times.
func (p *PTY) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.master.Close()
		if serr := p.slave.Close(); err == nil {
			err = serr
		}
	})
	return err
}
