// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values returned by the chatserver public API.

package api

import "errors"

var (
	// ErrInvalidPort is returned by Listen for ports outside 1..65535.
	ErrInvalidPort = errors.New("port must be in range 1..65535")
	// ErrAlreadyListening is returned when Listen is called twice.
	ErrAlreadyListening = errors.New("server is already listening")
	// ErrNotListening reports an operation on a server that is not bound.
	// No function in this module returns it.
	ErrNotListening = errors.New("server is not listening")
	// ErrClientNotFound is returned by Send for an unknown client id.
	ErrClientNotFound = errors.New("client not found")
	// ErrClientClosed is returned by Send for a client being torn down.
	ErrClientClosed = errors.New("client connection closed")
)
