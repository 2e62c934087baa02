// File: server/server.go
// Package server: the poll-driven accept loop and public API.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"log/slog"

	"github.com/codegod100/chatserver/api"
	"github.com/codegod100/chatserver/internal/netfd"
	"github.com/codegod100/chatserver/poller"
	"github.com/codegod100/chatserver/protocol"
)

const (
	// DefaultPort is the conventional listening port. Listen does not
	// fall back to it; the caller always passes the port.
	DefaultPort = 8080
	// DefaultStaticDir is where non-upgrade GETs are resolved.
	DefaultStaticDir = "static"
	// DefaultPollTimeout bounds one poll cycle so the loop observes the
	// shutdown flag periodically.
	DefaultPollTimeout = 5 * time.Second
	// DefaultReadTimeout closes clients whose reads stall the loop.
	DefaultReadTimeout = 30 * time.Second
)

// pollFailureLimit is how many consecutive poll failures the loop tolerates
// before it gives up and transitions to shutdown.
const pollFailureLimit = 3

// Server is the chat server core. It is not safe for concurrent use except
// for Shutdown, which may be called from a signal handler goroutine.
type Server struct {
	log         *slog.Logger
	listener    *netfd.Conn
	reg         *registry
	events      *queue.Queue
	running     atomic.Bool
	staticDir   string
	maxPayload  int64
	pollTimeout time.Duration
	readTimeout time.Duration

	pollFailures int
	cleanedUp    bool
}

// New builds a server; Listen must be called before Accept.
func New(opts ...Option) *Server {
	s := &Server{
		log:         slog.Default(),
		reg:         newRegistry(),
		events:      queue.New(),
		staticDir:   DefaultStaticDir,
		maxPayload:  protocol.DefaultMaxPayload,
		pollTimeout: DefaultPollTimeout,
		readTimeout: DefaultReadTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Listen binds the TCP listening socket. It fails if the server is already
// bound, the port is outside 1..65535, or the bind itself fails.
func (s *Server) Listen(port int) error {
	if s.listener != nil {
		return api.ErrAlreadyListening
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: %d", api.ErrInvalidPort, port)
	}
	l, err := netfd.Listen(port)
	if err != nil {
		return err
	}
	s.listener = l
	s.running.Store(true)
	s.log.Info("listening", slog.Int("port", port), slog.String("static", s.staticDir))
	return nil
}

// Shutdown asks the accept loop to stop. The loop observes the cleared
// flag at its next poll timeout and Accept returns a Shutdown event.
func (s *Server) Shutdown() {
	s.running.Store(false)
}

// Accept drives the event loop until one high-level event is available.
// It never fails; recoverable trouble surfaces as Error events and a dead
// server yields Shutdown.
func (s *Server) Accept() api.Event {
	for {
		if s.events.Length() > 0 {
			return s.events.Remove().(api.Event)
		}
		if !s.running.Load() {
			s.cleanup()
			return api.Shutdown()
		}

		clients := s.reg.pollClients()
		fds := make([]int, 0, len(clients)+1)
		fds = append(fds, s.listener.FD())
		for _, c := range clients {
			fds = append(fds, c.conn.FD())
		}
		byFD := make(map[int]*Client, len(clients))
		for _, c := range clients {
			byFD[c.conn.FD()] = c
		}

		ready, err := poller.Wait(fds, s.pollTimeout)
		if err != nil {
			s.pollFailures++
			if s.pollFailures >= pollFailureLimit {
				s.log.Error("poll failed repeatedly, shutting down", slog.Any("error", err))
				s.running.Store(false)
				continue
			}
			return api.ErrorEvent(fmt.Sprintf("poll failed: %v", err))
		}
		s.pollFailures = 0
		if len(ready) == 0 {
			s.log.Debug("poll timeout heartbeat", slog.Int("clients", s.reg.size()))
			continue
		}

		// New connections first, then client events in fd-iteration
		// order; poller.Wait preserves input order and the listener
		// leads the poll set.
		for _, r := range ready {
			if r.FD == s.listener.FD() {
				if r.Readable {
					s.handleAccept()
				}
				continue
			}
			c := byFD[r.FD]
			if c == nil || c.closed {
				continue
			}
			switch {
			case r.Readable:
				s.handleClientRead(c)
			case r.HangUp:
				s.teardown(c, true)
			}
		}
	}
}

// handleAccept takes one pending TCP connection, runs the handshake on its
// first read and either registers an upgraded client, serves a static
// file, or drops the socket.
func (s *Server) handleAccept() {
	conn, remote, err := netfd.Accept(s.listener)
	if err != nil {
		s.events.Add(api.ErrorEvent(fmt.Sprintf("accept failed: %v", err)))
		return
	}
	if s.readTimeout > 0 {
		if err := conn.SetReadTimeout(s.readTimeout); err != nil {
			s.log.Warn("read timeout not set", slog.String("remote", remote), slog.Any("error", err))
		}
	}

	buf := make([]byte, protocol.MaxRequestSize)
	n, err := conn.Read(buf)
	if err != nil {
		conn.Close()
		return
	}

	req, err := protocol.ParseRequest(buf[:n])
	if err != nil {
		conn.Write(protocol.ErrorResponse(400, "Bad Request"))
		conn.Close()
		s.events.Add(api.ErrorEvent(fmt.Sprintf("bad request from %s: %v", remote, err)))
		return
	}

	if !protocol.IsUpgrade(req) {
		s.serveStatic(conn, req.Path)
		conn.Close()
		return
	}

	accept, err := protocol.Upgrade(req)
	if err != nil {
		conn.Write(protocol.ErrorResponse(400, "Bad Request"))
		conn.Close()
		s.events.Add(api.ErrorEvent(fmt.Sprintf("upgrade refused for %s: %v", remote, err)))
		return
	}
	if _, err := conn.Write(protocol.UpgradeResponse(accept)); err != nil {
		conn.Close()
		return
	}

	c := s.reg.insert(conn, remote)
	c.upgraded = true
	s.events.Add(api.Connected(c.id))
	s.log.Debug("client upgraded", slog.Uint64("client", c.id), slog.String("remote", remote))
}

// handleClientRead consumes exactly one frame from a readable client.
func (s *Server) handleClientRead(c *Client) {
	frame, err := protocol.ReadFrame(c.conn, s.maxPayload)
	if err != nil {
		switch {
		case errors.Is(err, protocol.ErrProtocol):
			s.log.Warn("protocol violation", slog.Uint64("client", c.id), slog.Any("error", err))
		case errors.Is(err, io.EOF):
			s.log.Debug("peer closed", slog.Uint64("client", c.id))
		default:
			s.log.Warn("read failed", slog.Uint64("client", c.id), slog.Any("error", err))
		}
		s.teardown(c, true)
		return
	}

	switch frame.Opcode {
	case protocol.OpcodeText:
		s.events.Add(api.Message(c.id, string(frame.Payload)))
	case protocol.OpcodeClose:
		protocol.WriteFrame(c.conn, protocol.OpcodeClose, nil)
		s.teardown(c, true)
	case protocol.OpcodePing:
		if err := protocol.WriteFrame(c.conn, protocol.OpcodePong, frame.Payload); err != nil {
			s.teardown(c, true)
		}
	case protocol.OpcodePong:
		// Unsolicited pongs are discarded.
	}
}

// Send writes one text frame to a single upgraded client.
func (s *Server) Send(id uint64, text string) error {
	c := s.reg.get(id)
	if c == nil {
		return fmt.Errorf("send to client %d: %w", id, api.ErrClientNotFound)
	}
	if c.closed || !c.upgraded {
		return fmt.Errorf("send to client %d: %w", id, api.ErrClientClosed)
	}
	return protocol.WriteFrame(c.conn, protocol.OpcodeText, []byte(text))
}

// Broadcast writes one text frame to every upgraded client, the sender
// included. Per-client write failures are swallowed; the failed clients
// are evicted and their Disconnected events enqueued.
func (s *Server) Broadcast(text string) error {
	frame := protocol.EncodeFrame(protocol.OpcodeText, []byte(text))
	var failed []*Client
	for _, c := range s.reg.upgradedClients() {
		if _, err := c.conn.Write(frame); err != nil {
			s.log.Warn("broadcast write failed", slog.Uint64("client", c.id), slog.Any("error", err))
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		s.teardown(c, true)
	}
	return nil
}

// Close tears down one client. It is idempotent: closing an unknown or
// already-closed id is a no-op.
func (s *Server) Close(id uint64) {
	c := s.reg.get(id)
	if c == nil || c.closed {
		return
	}
	if c.upgraded {
		protocol.WriteFrame(c.conn, protocol.OpcodeClose, nil)
	}
	s.teardown(c, c.upgraded)
}

// teardown closes the socket, removes the registry entry and, for upgraded
// clients, enqueues the single Disconnected event. Removing the entry
// first is what makes the event exactly-once: a second path through any
// destruction route no longer finds the client.
func (s *Server) teardown(c *Client, emit bool) {
	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
	s.reg.remove(c.id)
	if emit && c.upgraded {
		s.events.Add(api.Disconnected(c.id))
	}
	s.log.Debug("client removed", slog.Uint64("client", c.id))
}

// cleanup releases the listener and every remaining socket once the loop
// has decided to return Shutdown.
func (s *Server) cleanup() {
	if s.cleanedUp {
		return
	}
	s.cleanedUp = true
	for _, c := range s.reg.pollClients() {
		protocol.WriteFrame(c.conn, protocol.OpcodeClose, nil)
		c.closed = true
		c.conn.Close()
		s.reg.remove(c.id)
	}
	if s.listener != nil {
		s.listener.Close()
	}
	s.log.Info("server stopped")
}
