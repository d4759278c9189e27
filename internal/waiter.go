package internal

import (
	"errors"
	"net"
	"syscall"
	"time"
)

// Readiness selects what AwaitReadiness waits for
type Readiness int

const (
	WaitReadable Readiness = iota
	WaitWritable
)

func (r Readiness) String() string {
	if r == WaitWritable {
		return "writable"
	}
	return "readable"
}

var errNotReady = errors.New("socket not ready before timeout")

// AwaitReadiness blocks until conn is readable or writable, or until timeout elapses.
// It returns false without error on timeout. A zero timeout only checks the current
// state. Connections that expose no file descriptor are reported ready; their reads and
// writes are bounded by deadlines instead.
func AwaitReadiness(conn net.Conn, mode Readiness, timeout time.Duration) (bool, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return true, nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false, err
	}

	var (
		ready   bool
		pollErr error
	)
	err = raw.Control(func(fd uintptr) {
		ready, pollErr = pollOne(fd, mode, timeout)
	})
	if err != nil {
		return false, err
	}
	return ready, pollErr
}
