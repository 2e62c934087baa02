// File: chat/envelope.go
// Package chat implements the JSON envelope contract between the server
// application and the browser UI.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package chat

import "encoding/json"

// Envelope is the server-to-UI message shape carried in WS text frames.
// System envelopes omit clientId; message envelopes always carry it.
// UI-to-server frames are raw text and never pass through this type.
type Envelope struct {
	Type     string `json:"type"`
	ClientID uint64 `json:"clientId,omitempty"`
	Text     string `json:"text"`
}

const (
	// TypeSystem marks join, leave and welcome messages.
	TypeSystem = "system"
	// TypeMessage marks a broadcast from a peer.
	TypeMessage = "message"
)

// System renders a system envelope.
func System(text string) (string, error) {
	return marshal(Envelope{Type: TypeSystem, Text: text})
}

// Message renders a peer-message envelope for the given sender.
func Message(clientID uint64, text string) (string, error) {
	return marshal(Envelope{Type: TypeMessage, ClientID: clientID, Text: text})
}

func marshal(e Envelope) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
