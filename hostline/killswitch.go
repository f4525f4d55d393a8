//go:build linux

package hostline

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// killSwitch lets Close wake a goroutine blocked waiting on a device fd.
type killSwitch struct {
	done  chan struct{}
	once  sync.Once
	pipeR int // self-pipe read fd
	pipeW int // self-pipe write fd
}

func newKillSwitch() (*killSwitch, error) {
	pipeFds := make([]int, 2)
	if err := unix.Pipe(pipeFds); err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	return &killSwitch{
		done:  make(chan struct{}),
		pipeR: pipeFds[0],
		pipeW: pipeFds[1],
	}, nil
}

// wait blocks until fd is readable or hung up, or the switch fires.
func (k *killSwitch) wait(fd int) error {
	for {
		pfd := []unix.PollFd{
			{Fd: int32(fd), Events: unix.POLLIN},
			{Fd: int32(k.pipeR), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(pfd, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		select {
		case <-k.done:
			return ErrClosed
		default:
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			// Drain pipe
			var b [1]byte
			unix.Read(k.pipeR, b[:])
			return ErrClosed
		}
		if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			return nil
		}
	}
}

func (k *killSwitch) fired() bool {
	select {
	case <-k.done:
		return true
	default:
		return false
	}
}

// fire wakes every wait and makes later ones return ErrClosed. It reports
// whether this call was the one that fired.
func (k *killSwitch) fire() bool {
	fired := false
	k.once.Do(func() {
		fired = true
		close(k.done)
		unix.Write(k.pipeW, []byte{1})
	})
	return fired
}

func (k *killSwitch) release() {
	unix.Close(k.pipeR)
	unix.Close(k.pipeW)
}
