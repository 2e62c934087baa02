// File: chat/relay.go
// Package chat: the application loop relaying messages between peers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package chat

import (
	"fmt"

	"log/slog"

	"github.com/codegod100/chatserver/api"
)

// Backend is the slice of the server core the relay consumes.
type Backend interface {
	Accept() api.Event
	Send(id uint64, text string) error
	Broadcast(text string) error
}

// Relay drains the server's event stream and rebroadcasts every inbound
// text frame wrapped in a message envelope, with system envelopes crafted
// on connect and disconnect.
type Relay struct {
	backend Backend
	log     *slog.Logger
}

// NewRelay builds a relay over the given backend.
func NewRelay(backend Backend, log *slog.Logger) *Relay {
	return &Relay{backend: backend, log: log}
}

// Run consumes events until the backend shuts down.
func (r *Relay) Run() error {
	for {
		ev := r.backend.Accept()
		switch ev.Type {
		case api.EventConnected:
			r.log.Info("client joined", slog.Uint64("client", ev.ClientID))
			if msg, err := System(fmt.Sprintf("welcome, you are client %d", ev.ClientID)); err == nil {
				if err := r.backend.Send(ev.ClientID, msg); err != nil {
					r.log.Warn("welcome not delivered", slog.Uint64("client", ev.ClientID), slog.Any("error", err))
				}
			}
			r.broadcastSystem(fmt.Sprintf("client %d joined", ev.ClientID))

		case api.EventDisconnected:
			r.log.Info("client left", slog.Uint64("client", ev.ClientID))
			r.broadcastSystem(fmt.Sprintf("client %d left", ev.ClientID))

		case api.EventMessage:
			msg, err := Message(ev.ClientID, ev.Text)
			if err != nil {
				r.log.Warn("envelope failed", slog.Any("error", err))
				continue
			}
			if err := r.backend.Broadcast(msg); err != nil {
				r.log.Warn("broadcast failed", slog.Any("error", err))
			}

		case api.EventError:
			r.log.Warn("server error", slog.String("desc", ev.Desc))

		case api.EventShutdown:
			r.log.Info("relay stopped")
			return nil
		}
	}
}

func (r *Relay) broadcastSystem(text string) {
	msg, err := System(text)
	if err != nil {
		r.log.Warn("envelope failed", slog.Any("error", err))
		return
	}
	if err := r.backend.Broadcast(msg); err != nil {
		r.log.Warn("broadcast failed", slog.Any("error", err))
	}
}
