//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package internal

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// pollOne waits on a one-element poll set
func pollOne(fd uintptr, mode Readiness, timeout time.Duration) (bool, error) {
	events := int16(unix.POLLIN)
	if mode == WaitWritable {
		events = unix.POLLOUT
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	ms := int(timeout / time.Millisecond)

	for {
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		if fds[0].Revents&unix.POLLNVAL != 0 {
			return false, errors.New("poll: invalid descriptor")
		}
		// POLLERR and POLLHUP count as ready: the next read or write reports the cause.
		return true, nil
	}
}
