// File: protocol/receiveloop.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The per-connection receive loop: pulls frames from the codec,
// reassembles fragmented application messages, echoes pings, and
// dispatches to the handler.

package protocol

import (
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/momentics/wsgateway/api"
)

// assembly tracks an in-progress fragmented application message while the
// loop is in the Assembling state.
type assembly struct {
	active bool
	isText bool
	buffer []byte
}

// Serve runs the Idle/Assembling state machine for conn until a Close
// frame is observed, a malformed frame is seen, or I/O fails. It always
// ends by removing the connection from reg, which itself calls
// conn.Close().
func (c *Connection) Serve(reg Registry) {
	defer reg.Remove(c)

	var asm assembly

	for {
		frame, err := ReceiveFrame(c.input)
		if err != nil {
			c.logger.Warn("receive loop terminating", zap.String("conn", c.id.String()), zap.Error(err))
			return
		}

		switch frame.Opcode {
		case OpcodeClose:
			c.handleClose(frame)
			return

		case OpcodePing:
			if err := c.sendPong(frame.Payload); err != nil {
				c.logger.Warn("pong send failed", zap.String("conn", c.id.String()), zap.Error(err))
				return
			}
			continue

		case OpcodePong:
			continue

		case OpcodeContinuation:
			if !asm.active {
				c.logger.Warn("continuation frame outside a fragmented message",
					zap.String("conn", c.id.String()))
				return
			}
			asm.buffer = append(asm.buffer, frame.Payload...)
			if !frame.Final {
				continue
			}
			if !c.dispatchAssembled(asm) {
				return
			}
			asm = assembly{}

		case OpcodeText, OpcodeBinary:
			if asm.active {
				c.logger.Warn("non-continuation frame during fragmented message",
					zap.String("conn", c.id.String()), zap.Stringer("opcode", frame.Opcode))
				return
			}
			if frame.Final {
				if !c.dispatchFrame(frame) {
					return
				}
				continue
			}
			asm = assembly{active: true, isText: frame.Opcode == OpcodeText, buffer: frame.Payload}
		}
	}
}

// handleClose echoes a Close frame back to the client per RFC 6455
// §5.5.1, dispatches OnCloseMessage, and lets the deferred reg.Remove
// tear the connection down.
func (c *Connection) handleClose(frame Frame) {
	code, reason := ParseCloseStatus(frame.Payload)

	echoCode, echoReason := code, reason
	if code.ReservedForLocalUse() || code == 0 {
		echoCode, echoReason = api.CloseNormal, ""
	}
	if err := c.SendClose(echoCode, echoReason); err != nil {
		c.logger.Warn("close echo failed", zap.String("conn", c.id.String()), zap.Error(err))
	}

	if c.handler != nil {
		c.handler.OnCloseMessage(api.CloseMessage{Conn: c, Code: code, Reason: reason})
	}
}

// dispatchFrame dispatches a non-fragmented Text/Binary frame. Returns
// false if the frame failed validation and the connection must close.
func (c *Connection) dispatchFrame(frame Frame) bool {
	return c.dispatch(frame.Opcode == OpcodeText, frame.Payload)
}

// dispatchAssembled dispatches a fully reassembled fragmented message.
func (c *Connection) dispatchAssembled(asm assembly) bool {
	return c.dispatch(asm.isText, asm.buffer)
}

// dispatch delivers a reassembled application message to the handler,
// enforcing the RFC 6455 §8.1 UTF-8 validity of Text payloads.
func (c *Connection) dispatch(isText bool, payload []byte) bool {
	if isText && !utf8.Valid(payload) {
		c.logger.Warn("invalid UTF-8 in text message", zap.String("conn", c.id.String()))
		if err := c.SendClose(api.CloseInconsistentData, "invalid UTF-8"); err != nil {
			c.logger.Warn("close send failed", zap.String("conn", c.id.String()), zap.Error(err))
		}
		return false
	}

	if c.handler == nil {
		return true
	}
	if isText {
		c.handler.OnTextMessage(api.TextMessage{Conn: c, Text: string(payload)})
	} else {
		c.handler.OnBinaryMessage(api.BinaryMessage{Conn: c, Data: payload})
	}
	return true
}
