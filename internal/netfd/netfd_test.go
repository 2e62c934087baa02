// File: internal/netfd/netfd_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netfd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"
)

// listenLoopback binds an ephemeral port and reports it.
func listenLoopback(t *testing.T) (*Conn, int) {
	t.Helper()
	l, err := Listen(0)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	port, err := l.LocalPort()
	if err != nil {
		t.Fatalf("LocalPort: %v", err)
	}
	return l, port
}

func TestListenAcceptReadWrite(t *testing.T) {
	l, port := listenLoopback(t)

	type clientIO struct {
		got []byte
		err error
	}
	done := make(chan clientIO, 1)
	go func() {
		c, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			done <- clientIO{err: err}
			return
		}
		defer c.Close()
		if _, err := c.Write([]byte("ping")); err != nil {
			done <- clientIO{err: err}
			return
		}
		buf := make([]byte, 4)
		if _, err := io.ReadFull(c, buf); err != nil {
			done <- clientIO{err: err}
			return
		}
		done <- clientIO{got: buf}
	}()

	conn, remote, err := Accept(l)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer conn.Close()
	if remote == "" || remote == "unknown" {
		t.Errorf("remote = %q", remote)
	}

	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf, []byte("ping")) {
		t.Errorf("read %q, want %q", buf, "ping")
	}
	if _, err := conn.Write([]byte("pong")); err != nil {
		t.Fatalf("write: %v", err)
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("client: %v", res.err)
	}
	if !bytes.Equal(res.got, []byte("pong")) {
		t.Errorf("client read %q, want %q", res.got, "pong")
	}
}

func TestReadReportsEOFOnPeerClose(t *testing.T) {
	l, port := listenLoopback(t)

	go func() {
		c, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return
		}
		c.Close()
	}()

	conn, _, err := Accept(l)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 16)
	if _, err := conn.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("read after peer close: err = %v, want io.EOF", err)
	}
}

func TestReadTimeout(t *testing.T) {
	l, port := listenLoopback(t)

	hold := make(chan struct{})
	go func() {
		c, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return
		}
		defer c.Close()
		<-hold
	}()
	defer close(hold)

	conn, _, err := Accept(l)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer conn.Close()
	if err := conn.SetReadTimeout(50 * time.Millisecond); err != nil {
		t.Fatalf("SetReadTimeout: %v", err)
	}

	start := time.Now()
	buf := make([]byte, 16)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("read of a silent peer succeeded")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("read blocked %v past its timeout", elapsed)
	}
}
