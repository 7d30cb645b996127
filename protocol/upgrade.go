// File: protocol/upgrade.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP→WebSocket upgrade handshake: validates the request, writes the 101
// response with the derived Sec-WebSocket-Accept key, constructs a
// Connection, and hands it to the Registry.

package protocol

import (
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/momentics/wsgateway/api"
)

// webSocketGUID is the RFC 6455 §1.3 magic value concatenated with the
// client's Sec-WebSocket-Key to derive the accept key.
const webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// maxHandshakeHeaderBytes bounds the combined header size validated before
// the connection is trusted.
const maxHandshakeHeaderBytes = 8192

// requiredWebSocketVersion is the only Sec-WebSocket-Version this core
// accepts, per RFC 6455 §4.2.2.
const requiredWebSocketVersion = "13"

// AcceptKey derives the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key: base64(sha1(key ++ GUID)).
func AcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(webSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Upgrader validates and performs the HTTP upgrade handshake and
// registers the resulting Connection with reg.
type Upgrader struct {
	Handler  api.Handler
	Registry Registry
	Logger   *zap.Logger
}

// NewUpgrader constructs an Upgrader delivering messages to handler and
// registering new Connections with reg.
func NewUpgrader(handler api.Handler, reg Registry, logger *zap.Logger) *Upgrader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Upgrader{Handler: handler, Registry: reg, Logger: logger}
}

// ServeHTTP implements http.Handler so an Upgrader can be mounted directly
// on an http.ServeMux, matching the idiom of every other handler in a
// net/http server.
func (u *Upgrader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeHandshakeError(w, http.StatusMethodNotAllowed, "Only GET requests are allowed.")
		return
	}

	if headerSize(r.Header) > maxHandshakeHeaderBytes {
		writeHandshakeError(w, http.StatusBadRequest, "Handshake headers too large.")
		return
	}

	if !headerContainsToken(r.Header, "Connection", "Upgrade") ||
		!headerContainsToken(r.Header, "Upgrade", "websocket") {
		writeHandshakeError(w, http.StatusBadRequest, "Invalid or missing Upgrade headers.")
		return
	}

	version := r.Header.Get("Sec-WebSocket-Version")
	if version != requiredWebSocketVersion {
		w.Header().Set("Sec-WebSocket-Version", requiredWebSocketVersion)
		writeHandshakeError(w, http.StatusUpgradeRequired, "Unsupported Sec-WebSocket-Version; only 13 is supported.")
		return
	}

	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		writeHandshakeError(w, http.StatusBadRequest, "Missing Sec-WebSocket-Key header.")
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		writeHandshakeError(w, http.StatusInternalServerError, "Server does not support hijacking.")
		return
	}

	accept := AcceptKey(key)
	w.Header().Set("Upgrade", "websocket")
	w.Header().Set("Connection", "Upgrade")
	w.Header().Set("Sec-WebSocket-Accept", accept)
	w.WriteHeader(http.StatusSwitchingProtocols)

	netConn, rw, err := hj.Hijack()
	if err != nil {
		u.Logger.Error("hijack failed", zap.Error(err))
		return
	}
	if err := rw.Flush(); err != nil {
		u.Logger.Error("handshake flush failed", zap.Error(err))
		_ = netConn.Close()
		return
	}

	conn := NewConnection(netConn, netConn, u.Handler, u.Logger)
	u.Registry.Add(conn, r)
}

// writeHandshakeError writes a plain-text error response with matching
// Content-Type and Content-Length headers.
func writeHandshakeError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// headerSize sums header name and value byte lengths, bounding the cost
// of validating a not-yet-trusted handshake.
func headerSize(h http.Header) int {
	total := 0
	for k, vs := range h {
		total += len(k)
		for _, v := range vs {
			total += len(v)
		}
	}
	return total
}

// headerContainsToken reports whether headerName contains token among its
// comma-separated values, case-insensitively (RFC 7230 §7 list syntax).
func headerContainsToken(h http.Header, headerName, token string) bool {
	token = strings.ToLower(token)
	for _, v := range h[http.CanonicalHeaderKey(headerName)] {
		for _, part := range strings.Split(v, ",") {
			if strings.ToLower(strings.TrimSpace(part)) == token {
				return true
			}
		}
	}
	return false
}

