package sim

import (
	"errors"
	"io"
	"sync"
)

var ErrLineClosed = errors.New("sim: line closed")

// Line is the host end of the USART2 wires: writes go to RX, reads come
// from TX.
type Line struct {
	m         *Machine
	done      chan struct{}
	closeOnce sync.Once
}

// Line opens a host end on the machine. Bytes on the TX wire go to
// whichever reader takes them first.
func (m *Machine) Line() *Line {
	return &Line{m: m, done: make(chan struct{})}
}

func (l *Line) Write(p []byte) (int, error) {
	select {
	case <-l.done:
		return 0, ErrLineClosed
	default:
	}
	l.m.Feed(p)
	return len(p), nil
}

// Read blocks for the first byte, then returns what else is already on
// the wire. It returns io.EOF once the line or the machine is closed.
func (l *Line) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	select {
	case c := <-l.m.out:
		p[0] = c
	case <-l.done:
		return 0, io.EOF
	case <-l.m.closed:
		return 0, io.EOF
	}
	n := 1
	for n < len(p) {
		select {
		case c := <-l.m.out:
			p[n] = c
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

func (l *Line) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}
