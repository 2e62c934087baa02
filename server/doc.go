// File: server/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package server implements the single-threaded, poll-driven chat server
// core: the connection registry, the accept loop that turns socket
// readiness into ordered high-level events, the static-file branch of the
// handshake, and the public Listen/Accept/Send/Broadcast/Close surface.
//
// There is exactly one thread driving the loop; all suspension happens
// inside poll(2) and blocking socket I/O. A failure on one client closes
// that client and never interrupts the cycle.
package server
