// File: internal/netfd/netfd.go
// Package netfd provides the blocking-socket substrate for the event loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The server owns its file descriptors directly instead of going through
// net.Conn: the accept loop multiplexes raw fds with poll(2), and the Go
// runtime's netpoller would fight over the same descriptors.

package netfd

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/sys/unix"
)

const listenBacklog = 128

// Listen binds a blocking TCP socket to 0.0.0.0:port and starts listening.
func Listen(port int) (*Conn, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	sa := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Conn{fd: fd}, nil
}

// Accept takes one pending connection off the listener. The returned
// connection is blocking; remote is the peer address in host:port form.
func Accept(l *Conn) (conn *Conn, remote string, err error) {
	for {
		fd, sa, err := unix.Accept(l.fd)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("accept: %w", err)
		}
		return &Conn{fd: fd}, sockaddrString(sa), nil
	}
}

// Conn is a raw-fd connection with blocking reads and write-all writes.
type Conn struct {
	fd int
}

// FD exposes the descriptor for the poll set.
func (c *Conn) FD() int { return c.fd }

// Read performs one blocking read. A zero-length result from the kernel
// means the peer closed; it is reported as io.EOF.
func (c *Conn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read fd %d: %w", c.fd, err)
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write loops until the whole buffer is on the wire or the socket errors.
// This is what makes frame writes atomic from the peer's point of view.
func (c *Conn) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := unix.Write(c.fd, p[written:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return written, fmt.Errorf("write fd %d: %w", c.fd, err)
		}
		written += n
	}
	return written, nil
}

// SetReadTimeout arms SO_RCVTIMEO so a stalled peer cannot hold the loop
// forever; a timed-out read fails with EAGAIN.
func (c *Conn) SetReadTimeout(d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	if err := unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("setsockopt SO_RCVTIMEO: %w", err)
	}
	return nil
}

// LocalPort reports the port the socket is bound to.
func (c *Conn) LocalPort() (int, error) {
	sa, err := unix.Getsockname(c.fd)
	if err != nil {
		return 0, fmt.Errorf("getsockname: %w", err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	}
	return 0, fmt.Errorf("getsockname: unexpected address family")
}

// Close releases the descriptor.
func (c *Conn) Close() error {
	return unix.Close(c.fd)
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%x]:%d", a.Addr, a.Port)
	}
	return "unknown"
}
