//go:build linux

package hostline

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Stdio is the process's own terminal used as the host end of the line.
type Stdio struct {
	in      *os.File
	out     *os.File
	restore *unix.Termios
	kill    *killSwitch
}

// OpenStdio wraps in and out. When in is a terminal it is switched to
// character-at-a-time input without echo or CR translation, so Enter
// reaches the device as '\r'. Output processing and signals are left on:
// Ctrl-C still interrupts and '\n' still returns the cursor.
func OpenStdio(in, out *os.File) (*Stdio, error) {
	kill, err := newKillSwitch()
	if err != nil {
		return nil, err
	}
	s := &Stdio{in: in, out: out, kill: kill}

	fd := int(in.Fd())
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		// Not a terminal, e.g. a pipe. Use it as is.
		return s, nil
	}
	saved := *termios

	termios.Iflag &^= unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.IEXTEN
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		kill.release()
		return nil, fmt.Errorf("set termios: %w", err)
	}
	s.restore = &saved
	return s, nil
}

// IsTerminal reports whether the input side was switched to raw mode.
func (s *Stdio) IsTerminal() bool { return s.restore != nil }

// Read waits for input or Close. After Close it returns ErrClosed.
func (s *Stdio) Read(p []byte) (int, error) {
	if err := s.kill.wait(int(s.in.Fd())); err != nil {
		return 0, err
	}
	return s.in.Read(p)
}

func (s *Stdio) Write(p []byte) (int, error) {
	if s.kill.fired() {
		return 0, ErrClosed
	}
	return s.out.Write(p)
}

// Close unblocks any Read and restores the terminal settings. It does not
// close in or out.
func (s *Stdio) Close() error {
	if !s.kill.fire() {
		return nil
	}
	var err error
	if s.restore != nil {
		err = unix.IoctlSetTermios(int(s.in.Fd()), unix.TCSETS, s.restore)
	}
	s.kill.release()
	return err
}
