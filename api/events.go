// File: api/events.go
// Package api defines the core event types for chatserver.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "fmt"

// EventType discriminates the values produced by Server.Accept.
type EventType int

const (
	// EventConnected is emitted once a client completes the WebSocket
	// handshake.
	EventConnected EventType = iota
	// EventDisconnected is emitted when an upgraded client goes away:
	// close frame, read error, hang-up, or an application-initiated close.
	EventDisconnected
	// EventMessage carries one complete text frame from a client.
	EventMessage
	// EventError surfaces a recoverable condition; the loop continues.
	EventError
	// EventShutdown is returned once the server is no longer running.
	EventShutdown
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventShutdown:
		return "shutdown"
	}
	return "unknown"
}

// Event is the discriminated value produced by the accept loop. ClientID is
// set for Connected, Disconnected and Message events; Text carries the
// payload of a Message; Desc describes an Error.
type Event struct {
	Type     EventType
	ClientID uint64
	Text     string
	Desc     string
}

// Connected builds a Connected event for id.
func Connected(id uint64) Event {
	return Event{Type: EventConnected, ClientID: id}
}

// Disconnected builds a Disconnected event for id.
func Disconnected(id uint64) Event {
	return Event{Type: EventDisconnected, ClientID: id}
}

// Message builds a Message event carrying text received from id.
func Message(id uint64, text string) Event {
	return Event{Type: EventMessage, ClientID: id, Text: text}
}

// ErrorEvent builds an Error event with a human-readable description.
func ErrorEvent(desc string) Event {
	return Event{Type: EventError, Desc: desc}
}

// Shutdown builds a Shutdown event.
func Shutdown() Event {
	return Event{Type: EventShutdown}
}

// String renders the event for diagnostics.
func (e Event) String() string {
	switch e.Type {
	case EventMessage:
		return fmt.Sprintf("message(client=%d, %q)", e.ClientID, e.Text)
	case EventError:
		return fmt.Sprintf("error(%s)", e.Desc)
	case EventConnected, EventDisconnected:
		return fmt.Sprintf("%s(client=%d)", e.Type, e.ClientID)
	}
	return e.Type.String()
}
