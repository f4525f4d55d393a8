//go:build linux

package hostline

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// TTY is a raw, killable byte line on a Linux serial or pty device.
// Read and Write may be used from different goroutines; Close unblocks a
// pending Read.
type TTY struct {
	fd     int
	file   *os.File
	kill   *killSwitch
	config Config
}

// OpenTTY opens a tty device in raw 8N1 mode at the configured baud rate.
func OpenTTY(cfg Config) (*TTY, error) {
	fd, err := syscall.Open(cfg.Device, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}

	if err := setRaw(fd, baudToUnix(cfg.BaudRate)); err != nil {
		syscall.Close(fd)
		return nil, err
	}

	// Turn back into blocking mode now that config is done
	if err := syscall.SetNonblock(fd, false); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("set blocking: %w", err)
	}

	kill, err := newKillSwitch()
	if err != nil {
		syscall.Close(fd)
		return nil, err
	}

	return &TTY{
		fd:     fd,
		file:   os.NewFile(uintptr(fd), cfg.Device),
		kill:   kill,
		config: cfg,
	}, nil
}

// setRaw puts fd into raw mode: no line editing, no echo, no CR/NL
// translation in either direction, 8 data bits, no parity.
func setRaw(fd int, baud uint32) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	termios.Cflag |= unix.CS8

	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud

	// VMIN=1, VTIME=0: a read returns as soon as one byte is there
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// Name returns the device path.
func (t *TTY) Name() string { return t.config.Device }

// Read waits for data or Close, whichever comes first. After Close it
// returns ErrClosed.
func (t *TTY) Read(p []byte) (int, error) {
	if err := t.kill.wait(t.fd); err != nil {
		return 0, err
	}
	return t.file.Read(p)
}

// Write writes p to the device.
func (t *TTY) Write(p []byte) (int, error) {
	if t.kill.fired() {
		return 0, ErrClosed
	}
	return t.file.Write(p)
}

// Close closes the device and unblocks any Read.
// Safe to call multiple times; subsequent calls are no-ops.
func (t *TTY) Close() error {
	if !t.kill.fire() {
		return nil
	}
	// Closing the file closes fd as well.
	err := t.file.Close()
	t.kill.release()
	return err
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	case 460800:
		return unix.B460800
	case 500000:
		return unix.B500000
	default:
		return unix.B115200 // fallback
	}
}
