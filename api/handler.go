// File: api/handler.go
// Package api defines the Handler capability and the message records
// dispatched to it, plus the minimal Conn surface a Handler needs
// without importing the protocol package (which in turn depends on api
// for these types).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"net/http"

	"github.com/google/uuid"
)

// Conn is the subset of protocol.Connection a Handler is allowed to act
// on: send operations and a cooperative close. Handlers never see the
// underlying streams.
type Conn interface {
	ID() uuid.UUID
	SendText(s string) error
	SendBinary(b []byte) error
	SendClose(code CloseStatus, reason string) error
	SendPing(payload []byte) error
	Close() error
}

// TextMessage is delivered to Handler.OnTextMessage for a reassembled Text
// application message.
type TextMessage struct {
	Conn Conn
	Text string
}

// BinaryMessage is delivered to Handler.OnBinaryMessage for a reassembled
// Binary application message.
type BinaryMessage struct {
	Conn Conn
	Data []byte
}

// CloseMessage is delivered to Handler.OnCloseMessage when a Close frame
// is observed.
type CloseMessage struct {
	Conn   Conn
	Code   CloseStatus
	Reason string
}

// Handler is the user-supplied message handler. All five hooks are
// mandatory on the interface but implementations are free to embed
// NopHandler and override only what they need, or use HandlerFuncs for a
// record of optional callbacks.
type Handler interface {
	OnConnectionEstablished(conn Conn, r *http.Request)
	OnTextMessage(msg TextMessage)
	OnBinaryMessage(msg BinaryMessage)
	OnCloseMessage(msg CloseMessage)
	OnConnectionClosed(conn Conn)
}

// NopHandler implements Handler with no-op bodies. Embed it to override
// only the hooks a concrete handler cares about.
type NopHandler struct{}

func (NopHandler) OnConnectionEstablished(Conn, *http.Request) {}
func (NopHandler) OnTextMessage(TextMessage)                   {}
func (NopHandler) OnBinaryMessage(BinaryMessage)                {}
func (NopHandler) OnCloseMessage(CloseMessage)                  {}
func (NopHandler) OnConnectionClosed(Conn)                      {}

// HandlerFuncs is a record of five optional callbacks implementing
// Handler; a nil field is a no-op.
type HandlerFuncs struct {
	OnConnectionEstablishedFunc func(conn Conn, r *http.Request)
	OnTextMessageFunc           func(msg TextMessage)
	OnBinaryMessageFunc         func(msg BinaryMessage)
	OnCloseMessageFunc          func(msg CloseMessage)
	OnConnectionClosedFunc      func(conn Conn)
}

var _ Handler = HandlerFuncs{}

func (h HandlerFuncs) OnConnectionEstablished(conn Conn, r *http.Request) {
	if h.OnConnectionEstablishedFunc != nil {
		h.OnConnectionEstablishedFunc(conn, r)
	}
}

func (h HandlerFuncs) OnTextMessage(msg TextMessage) {
	if h.OnTextMessageFunc != nil {
		h.OnTextMessageFunc(msg)
	}
}

func (h HandlerFuncs) OnBinaryMessage(msg BinaryMessage) {
	if h.OnBinaryMessageFunc != nil {
		h.OnBinaryMessageFunc(msg)
	}
}

func (h HandlerFuncs) OnCloseMessage(msg CloseMessage) {
	if h.OnCloseMessageFunc != nil {
		h.OnCloseMessageFunc(msg)
	}
}

func (h HandlerFuncs) OnConnectionClosed(conn Conn) {
	if h.OnConnectionClosedFunc != nil {
		h.OnConnectionClosedFunc(conn)
	}
}
