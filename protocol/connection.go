// File: protocol/connection.go
// Package protocol implements the core WebSocket connection handling.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection bundles an identity, an input stream, an output stream, and a
// reference to the user-supplied message handler.

package protocol

import (
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/momentics/wsgateway/api"
)

// Connection is a value bundling an identity, an owned input stream, an
// owned output stream, and a shared reference to the user handler. id is
// assigned once at construction and never changes.
type Connection struct {
	id      uuid.UUID
	input   io.Reader
	output  io.Writer
	handler api.Handler
	logger  *zap.Logger

	writeMu sync.Mutex
	closed  atomic.Bool
}

var _ api.Conn = (*Connection)(nil)

// NewConnection constructs a Connection wrapping input/output streams and
// a shared handler. id is assigned immediately and is immutable for the
// lifetime of the value.
func NewConnection(input io.Reader, output io.Writer, handler api.Handler, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connection{
		id:      uuid.New(),
		input:   input,
		output:  output,
		handler: handler,
		logger:  logger,
	}
}

// ID returns the connection's immutable identity.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// IsClosed reports whether Close has been called. The flag is set as
// Close begins, before its Close frame, stream closes and handler hook.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// NotifyEstablished invokes handler.OnConnectionEstablished(conn, r), the
// hook the Manager fires once a Connection's receive loop has started.
func (c *Connection) NotifyEstablished(r *http.Request) {
	if c.handler != nil {
		c.handler.OnConnectionEstablished(c, r)
	}
}

// SendText emits a single Text frame. Serialized against all other sends
// on this Connection by writeMu, since the output stream is shared
// between the receive loop (Pong/Close) and any caller invoking a send
// directly.
func (c *Connection) SendText(s string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteTextFrame(c.output, s)
}

// SendBinary emits a single Binary frame.
func (c *Connection) SendBinary(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteBinaryFrame(c.output, b)
}

// SendClose emits a Close frame. It does not itself shut down the
// streams — callers that want a full teardown should call Close.
func (c *Connection) SendClose(code api.CloseStatus, reason string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteCloseFrame(c.output, code, reason)
}

// SendPing emits a Ping frame.
func (c *Connection) SendPing(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WritePingFrame(c.output, payload)
}

// sendPong emits a Pong frame; unexported since only the receive loop
// echoes pings, never a direct caller.
func (c *Connection) sendPong(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WritePongFrame(c.output, payload)
}

// Close is an idempotent-on-effect shutdown: best-effort Close frame,
// then closing both streams if they're Closable, then invoking
// handler.OnConnectionClosed. Safe to call concurrently with an
// in-progress send and safe to call more than once — only the first call
// has any effect, gated on the closed flag.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.SendClose(api.CloseNormal, ""); err != nil {
		c.logger.Warn("best-effort close frame failed", zap.String("conn", c.id.String()), zap.Error(err))
	}

	inputCloser, inputClosable := c.input.(io.Closer)
	if inputClosable {
		if err := inputCloser.Close(); err != nil {
			c.logger.Warn("input stream close failed", zap.String("conn", c.id.String()), zap.Error(err))
		}
	}
	// input and output are frequently the same hijacked net.Conn; avoid
	// closing it twice.
	if outputCloser, ok := c.output.(io.Closer); ok && (!inputClosable || outputCloser != inputCloser) {
		if err := outputCloser.Close(); err != nil {
			c.logger.Warn("output stream close failed", zap.String("conn", c.id.String()), zap.Error(err))
		}
	}

	if c.handler != nil {
		c.handler.OnConnectionClosed(c)
	}
	return nil
}
