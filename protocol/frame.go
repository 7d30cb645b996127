// File: protocol/frame.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket frame encoding/decoding over arbitrary byte streams. Pure
// functions: no I/O policy, no connection state.

package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/momentics/wsgateway/api"
)

// MaxControlPayload is the RFC 6455 §5.5 control-frame payload bound.
const MaxControlPayload = 125

// maxCloseReason bounds a Close frame's reason so the 2-byte status plus
// reason stays within MaxControlPayload.
const maxCloseReason = MaxControlPayload - 2

// Frame is a parsed wire record. The payload is already unmasked.
type Frame struct {
	Final   bool
	Opcode  Opcode
	Payload []byte
}

// ReceiveFrame reads exactly one frame from r and returns its
// {fin, opcode, payload}.
func ReceiveFrame(r io.Reader) (Frame, error) {
	var hdr [2]byte
	if err := readFull(r, hdr[:], "frame header"); err != nil {
		return Frame{}, err
	}

	if hdr[0]&0x70 != 0 {
		return Frame{}, api.NewProtocolError("receive", fmt.Errorf("reserved bits set: %#02x", hdr[0]))
	}

	final := hdr[0]&0x80 != 0
	opcode := Opcode(hdr[0] & 0x0F)
	if !opcode.Valid() {
		return Frame{}, api.NewProtocolError("receive", fmt.Errorf("invalid opcode %#02x", byte(opcode)))
	}

	masked := hdr[1]&0x80 != 0
	length := uint64(hdr[1] & 0x7F)

	switch length {
	case 126:
		var ext [2]byte
		if err := readFull(r, ext[:], "16-bit length"); err != nil {
			return Frame{}, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if err := readFull(r, ext[:], "64-bit length"); err != nil {
			return Frame{}, err
		}
		length = binary.BigEndian.Uint64(ext[:])
	}

	if opcode.IsControl() && (length > MaxControlPayload || !final) {
		return Frame{}, api.NewProtocolError("receive",
			fmt.Errorf("control frame %s: len=%d fin=%v", opcode, length, final))
	}

	var maskKey [4]byte
	if masked {
		if err := readFull(r, maskKey[:], "mask key"); err != nil {
			return Frame{}, err
		}
	}

	payload := make([]byte, length)
	if err := readFull(r, payload, "payload"); err != nil {
		return Frame{}, err
	}
	if masked {
		applyMask(payload, maskKey)
	}

	return Frame{Final: final, Opcode: opcode, Payload: payload}, nil
}

// readFull reads exactly len(buf) bytes, converting a short read into an
// IoError naming the shortfall.
func readFull(r io.Reader, buf []byte, what string) error {
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return api.NewIOError("receive", fmt.Errorf("%s: read %d of %d bytes: %w", what, n, len(buf), err))
	}
	return nil
}

// applyMask XORs buf in place with key, repeating key every 4 bytes.
// Applying it twice is the identity.
func applyMask(buf []byte, key [4]byte) {
	for i := range buf {
		buf[i] ^= key[i%4]
	}
}

// writeFrame emits a single unmasked, final frame with the given opcode
// and payload: FIN=1, MASK=0, never fragmented.
func writeFrame(w io.Writer, opcode Opcode, payload []byte) error {
	header := make([]byte, 0, 10)
	header = append(header, 0x80|byte(opcode))

	n := len(payload)
	switch {
	case n < 126:
		header = append(header, byte(n))
	case n <= 0xFFFF:
		header = append(header, 126)
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(n))
		header = append(header, ext[:]...)
	default:
		header = append(header, 127)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(n))
		header = append(header, ext[:]...)
	}

	if err := writeAll(w, header, "frame header"); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return writeAll(w, payload, "frame payload")
}

// writeAll writes all of buf, converting a short write into an IoError.
func writeAll(w io.Writer, buf []byte, what string) error {
	n, err := w.Write(buf)
	if err != nil {
		return api.NewIOError("send", fmt.Errorf("%s: wrote %d of %d bytes: %w", what, n, len(buf), err))
	}
	if n != len(buf) {
		return api.NewIOError("send", fmt.Errorf("%s: wrote %d of %d bytes", what, n, len(buf)))
	}
	return nil
}

// WriteTextFrame emits a single final Text frame carrying the UTF-8 bytes
// of s.
func WriteTextFrame(w io.Writer, s string) error {
	return writeFrame(w, OpcodeText, []byte(s))
}

// WriteBinaryFrame emits a single final Binary frame carrying b.
func WriteBinaryFrame(w io.Writer, b []byte) error {
	return writeFrame(w, OpcodeBinary, b)
}

// WriteCloseFrame emits a single final Close frame: a 2-byte big-endian
// status followed by the UTF-8 reason. reason must be ≤123 bytes so the
// total control payload stays ≤125; violating that is an InvalidArgument
// error surfaced synchronously to the caller.
func WriteCloseFrame(w io.Writer, code api.CloseStatus, reason string) error {
	if len(reason) > maxCloseReason {
		return api.NewInvalidArgumentError("send",
			fmt.Errorf("close reason %d bytes exceeds %d byte limit", len(reason), maxCloseReason))
	}
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)
	return writeFrame(w, OpcodeClose, payload)
}

// WritePingFrame emits a single final Ping frame.
func WritePingFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxControlPayload {
		return api.NewInvalidArgumentError("send",
			fmt.Errorf("ping payload %d bytes exceeds %d byte limit", len(payload), MaxControlPayload))
	}
	return writeFrame(w, OpcodePing, payload)
}

// WritePongFrame emits a single final Pong frame.
func WritePongFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxControlPayload {
		return api.NewInvalidArgumentError("send",
			fmt.Errorf("pong payload %d bytes exceeds %d byte limit", len(payload), MaxControlPayload))
	}
	return writeFrame(w, OpcodePong, payload)
}

// ParseCloseStatus decodes a Close frame's payload into a status code and
// an optional UTF-8 reason. An empty payload yields
// CloseNoCode and an empty reason — RFC 6455 §7.1.5 treats a Close frame
// with no payload as "no status code present".
func ParseCloseStatus(payload []byte) (api.CloseStatus, string) {
	if len(payload) < 2 {
		return api.CloseNoCode, ""
	}
	code := api.CloseStatus(binary.BigEndian.Uint16(payload[:2]))
	return code, string(payload[2:])
}
