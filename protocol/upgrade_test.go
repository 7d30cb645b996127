// File: protocol/upgrade_test.go
package protocol_test

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/wsgateway/protocol"
)

// TestAcceptKeyDerivation checks the accept-key derivation against the
// RFC 6455 §1.3 worked example.
func TestAcceptKeyDerivation(t *testing.T) {
	got := protocol.AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", got)
}

type addOnlyRegistry struct {
	added []*protocol.Connection
}

func (r *addOnlyRegistry) Add(c *protocol.Connection, req *http.Request) { r.added = append(r.added, c) }
func (r *addOnlyRegistry) Remove(c *protocol.Connection)                 {}

func TestUpgradeRejectsNonGET(t *testing.T) {
	reg := &addOnlyRegistry{}
	u := protocol.NewUpgrader(nil, reg, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ws", nil)
	u.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Only GET requests are allowed.", rec.Body.String())
	assert.Empty(t, reg.added)
}

func TestUpgradeRejectsMissingKey(t *testing.T) {
	reg := &addOnlyRegistry{}
	u := protocol.NewUpgrader(nil, reg, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	u.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing Sec-WebSocket-Key header.", rec.Body.String())
}

func TestUpgradeRejectsBadVersion(t *testing.T) {
	reg := &addOnlyRegistry{}
	u := protocol.NewUpgrader(nil, reg, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "8")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	u.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUpgradeRequired, rec.Code)
}

// TestUpgradeSucceedsOverRealConnection exercises the hijack path end to
// end: a real TCP connection, a handshake request, and the resulting 101
// response with the derived Sec-WebSocket-Accept header.
func TestUpgradeSucceedsOverRealConnection(t *testing.T) {
	reg := &addOnlyRegistry{}
	u := protocol.NewUpgrader(nil, reg, nil)

	srv := httptest.NewServer(u)
	defer srv.Close()

	addr := srv.Listener.Addr().String()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	key := "dGhlIHNhbXBsZSBub25jZQ=="
	req := fmt.Sprintf(
		"GET /ws HTTP/1.1\r\nHost: %s\r\nConnection: Upgrade\r\nUpgrade: websocket\r\nSec-WebSocket-Version: 13\r\nSec-WebSocket-Key: %s\r\n\r\n",
		addr, key,
	)
	_, err = conn.Write([]byte(req))
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	assert.Equal(t, "websocket", resp.Header.Get("Upgrade"))
	assert.Equal(t, protocol.AcceptKey(key), resp.Header.Get("Sec-WebSocket-Accept"))

	// Registry.Add runs in ServeHTTP only after the response has been
	// flushed back to us, so give it a brief grace window.
	assert.Eventually(t, func() bool { return len(reg.added) == 1 }, time.Second, time.Millisecond)
}
