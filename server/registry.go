// File: server/registry.go
// Package server: connection registry and client state.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"sort"

	"github.com/codegod100/chatserver/internal/netfd"
)

// Client is one live peer. The registry exclusively owns the connection;
// the event loop borrows it for the duration of a single poll iteration.
type Client struct {
	id       uint64
	conn     *netfd.Conn
	remote   string
	upgraded bool
	closed   bool
}

// ID returns the server-assigned monotonic identifier.
func (c *Client) ID() uint64 { return c.id }

// Remote returns the peer address the connection was accepted from.
func (c *Client) Remote() string { return c.remote }

// registry maps client ids to clients. Ids start at 1 and are never reused
// within a server lifetime.
type registry struct {
	clients map[uint64]*Client
	nextID  uint64
}

func newRegistry() *registry {
	return &registry{clients: make(map[uint64]*Client)}
}

// insert allocates the next id and takes ownership of conn.
func (r *registry) insert(conn *netfd.Conn, remote string) *Client {
	r.nextID++
	c := &Client{id: r.nextID, conn: conn, remote: remote}
	r.clients[c.id] = c
	return c
}

// get returns the client for id, or nil.
func (r *registry) get(id uint64) *Client {
	return r.clients[id]
}

// remove drops the entry for id. The caller closes the socket.
func (r *registry) remove(id uint64) {
	delete(r.clients, id)
}

// upgradedClients enumerates all upgraded, not-closed clients in ascending
// id order; broadcast iterates this.
func (r *registry) upgradedClients() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if c.upgraded && !c.closed {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// pollClients enumerates every non-closed client in ascending id order for
// the poll set.
func (r *registry) pollClients() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if !c.closed {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// size reports the number of registered clients.
func (r *registry) size() int {
	return len(r.clients)
}
