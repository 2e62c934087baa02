// File: protocol/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package protocol implements the wire side of RFC 6455: the frame codec
// (client-masked inbound frames, unmasked outbound frames, control frames)
// and the HTTP/1.1 upgrade handshake including the Sec-WebSocket-Accept
// computation.
//
// The codec is deliberately strict: reserved bits, unknown opcodes,
// unmasked client frames, fragmented data frames, binary frames and
// payloads above the configured ceiling are all protocol errors that tear
// the connection down.
package protocol
