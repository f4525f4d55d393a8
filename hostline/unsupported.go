//go:build !linux

package hostline

import "os"

// TTY is only available on Linux.
type TTY struct{ config Config }

func OpenTTY(cfg Config) (*TTY, error) { return nil, ErrUnsupported }

func (t *TTY) Name() string { return t.config.Device }

func (t *TTY) Read(p []byte) (int, error) { return 0, ErrUnsupported }

func (t *TTY) Write(p []byte) (int, error) { return 0, ErrUnsupported }

func (t *TTY) Close() error { return nil }

// PTY is only available on Linux.
type PTY struct{}

func OpenPTY() (*PTY, error) { return nil, ErrUnsupported }

func (p *PTY) Name() string { return "" }

func (p *PTY) Read(b []byte) (int, error) { return 0, ErrUnsupported }

func (p *PTY) Write(b []byte) (int, error) { return 0, ErrUnsupported }

func (p *PTY) Close() error { return nil }

// Stdio is only available on Linux.
type Stdio struct{}

func OpenStdio(in, out *os.File) (*Stdio, error) { return nil, ErrUnsupported }

func (s *Stdio) IsTerminal() bool { return false }

func (s *Stdio) Read(p []byte) (int, error) { return 0, ErrUnsupported }

func (s *Stdio) Write(p []byte) (int, error) { return 0, ErrUnsupported }

func (s *Stdio) Close() error { return nil }
