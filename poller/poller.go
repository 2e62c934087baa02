// File: poller/poller.go
// Package poller wraps poll(2) as the event loop's readiness primitive.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The accept loop rebuilds its interest set from the registry on every
// cycle, so a stateless poll(2) wrapper fits better than a persistent
// epoll set: the pollfd slice is the interest set.

package poller

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Readiness describes what poll reported for one descriptor.
type Readiness struct {
	FD       int
	Readable bool // POLLIN
	HangUp   bool // POLLHUP, POLLERR or POLLNVAL
}

// Wait polls the given descriptors for readability until at least one is
// ready or the timeout elapses. Results come back in input order; an empty
// result means timeout. A signal interrupting the wait is treated as a
// timeout so the caller re-checks its shutdown flag.
func Wait(fds []int, timeout time.Duration) ([]Readiness, error) {
	pollFDs := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		pollFDs[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}

	n, err := unix.Poll(pollFDs, int(timeout.Milliseconds()))
	if err == unix.EINTR {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	ready := make([]Readiness, 0, n)
	for _, p := range pollFDs {
		if p.Revents == 0 {
			continue
		}
		ready = append(ready, Readiness{
			FD:       int(p.Fd),
			Readable: p.Revents&unix.POLLIN != 0,
			HangUp:   p.Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0,
		})
	}
	return ready, nil
}
