// File: protocol/frame_codec.go
// Package protocol implements WebSocket frame encoding and decoding with
// payload size enforcement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// DefaultMaxPayload is the largest payload a single inbound frame may
// declare. Larger frames are rejected and the connection is torn down.
const DefaultMaxPayload = 1 << 16 // 65536

// ErrProtocol is the root of every protocol violation the codec reports.
// Callers match the whole family with errors.Is(err, ErrProtocol).
var ErrProtocol = errors.New("websocket protocol error")

var (
	// ErrReservedBits signals a frame with RSV1-3 set; no extension is
	// ever negotiated, so the bits must be zero.
	ErrReservedBits = fmt.Errorf("%w: non-zero reserved bits", ErrProtocol)
	// ErrBadOpcode signals an opcode outside the RFC 6455 set.
	ErrBadOpcode = fmt.Errorf("%w: unknown opcode", ErrProtocol)
	// ErrUnmaskedFrame signals a client frame without the mask bit.
	ErrUnmaskedFrame = fmt.Errorf("%w: client frame not masked", ErrProtocol)
	// ErrFragmentedFrame signals a data frame with FIN clear or a
	// continuation frame; single-fragment messages only.
	ErrFragmentedFrame = fmt.Errorf("%w: fragmented frames not supported", ErrProtocol)
	// ErrBinaryFrame signals a binary data frame; the chat protocol is
	// text-only.
	ErrBinaryFrame = fmt.Errorf("%w: binary frames not supported", ErrProtocol)
	// ErrControlTooLong signals a control frame with payload above 125.
	ErrControlTooLong = fmt.Errorf("%w: control frame payload above 125 bytes", ErrProtocol)
	// ErrFragmentedControl signals a control frame with FIN clear.
	ErrFragmentedControl = fmt.Errorf("%w: fragmented control frame", ErrProtocol)
	// ErrLengthMSB signals a 64-bit length with the most significant bit
	// set.
	ErrLengthMSB = fmt.Errorf("%w: 64-bit length has MSB set", ErrProtocol)
	// ErrPayloadTooLarge signals a declared length above the ceiling.
	ErrPayloadTooLarge = fmt.Errorf("%w: payload exceeds maximum size", ErrProtocol)
	// ErrInvalidUTF8 signals a text frame whose payload is not UTF-8.
	ErrInvalidUTF8 = fmt.Errorf("%w: text payload is not valid UTF-8", ErrProtocol)
)

// ReadFrame reads and validates exactly one client frame from r. The
// returned frame is one of text, close, ping or pong with its payload
// already unmasked; every other shape is a protocol error. maxPayload <= 0
// selects DefaultMaxPayload.
func ReadFrame(r io.Reader, maxPayload int64) (*Frame, error) {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}

	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	fin := hdr[0]&finBit != 0
	opcode := Opcode(hdr[0] & 0x0F)
	masked := hdr[1]&maskBit != 0
	length := int64(hdr[1] & lenMask)

	if hdr[0]&rsvMask != 0 {
		return nil, ErrReservedBits
	}
	if !opcode.IsValid() {
		return nil, ErrBadOpcode
	}
	if opcode == OpcodeBinary {
		return nil, ErrBinaryFrame
	}
	if opcode == OpcodeContinuation || (!fin && !opcode.IsControl()) {
		return nil, ErrFragmentedFrame
	}
	if opcode.IsControl() {
		if !fin {
			return nil, ErrFragmentedControl
		}
		if length > 125 {
			return nil, ErrControlTooLong
		}
	}
	if !masked {
		return nil, ErrUnmaskedFrame
	}

	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, err
		}
		length = int64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return nil, err
		}
		if ext[0]&0x80 != 0 {
			return nil, ErrLengthMSB
		}
		length = int64(binary.BigEndian.Uint64(ext[:]))
	}

	if length > maxPayload {
		return nil, ErrPayloadTooLarge
	}

	var maskKey [4]byte
	if _, err := io.ReadFull(r, maskKey[:]); err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	Cipher(payload, maskKey)

	if opcode == OpcodeText && !utf8.Valid(payload) {
		return nil, ErrInvalidUTF8
	}

	return &Frame{
		Fin:     fin,
		Opcode:  opcode,
		Masked:  true,
		MaskKey: maskKey,
		Payload: payload,
	}, nil
}

// EncodeFrame serializes one server frame: FIN set, no mask, payload
// verbatim.
func EncodeFrame(opcode Opcode, payload []byte) []byte {
	plen := len(payload)
	buf := make([]byte, 0, 10+plen)
	buf = append(buf, finBit|byte(opcode))

	switch {
	case plen <= 125:
		buf = append(buf, byte(plen))
	case plen <= 0xFFFF:
		buf = append(buf, 126)
		buf = binary.BigEndian.AppendUint16(buf, uint16(plen))
	default:
		buf = append(buf, 127)
		buf = binary.BigEndian.AppendUint64(buf, uint64(plen))
	}

	return append(buf, payload...)
}

// WriteFrame encodes one server frame and writes it to w in a single call.
// w must either write the whole buffer or fail; the netfd layer provides
// that guarantee for sockets.
func WriteFrame(w io.Writer, opcode Opcode, payload []byte) error {
	if _, err := w.Write(EncodeFrame(opcode, payload)); err != nil {
		return fmt.Errorf("write %s frame: %w", opcode, err)
	}
	return nil
}

// Cipher applies the RFC 6455 XOR mask to buf in place. Masking and
// unmasking are the same operation.
func Cipher(buf []byte, key [4]byte) {
	for i := range buf {
		buf[i] ^= key[i%4]
	}
}
