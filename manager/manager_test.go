// File: manager/manager_test.go
package manager_test

import (
	"bytes"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/wsgateway/manager"
	"github.com/momentics/wsgateway/protocol"
)

func newTestManager() *manager.Manager {
	return manager.NewManager(manager.WithMetrics(manager.NewMetrics(prometheus.NewRegistry())))
}

func newTestConnection(out io.Writer) *protocol.Connection {
	return protocol.NewConnection(&blockingReader{}, out, nil, nil)
}

// blockingReader never returns, standing in for a connection whose receive
// loop is parked waiting on real network input.
type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}

func TestManagerAddRegistersConnection(t *testing.T) {
	m := newTestManager()
	conn := newTestConnection(&bytes.Buffer{})

	m.Add(conn, httpRequest())

	assert.Equal(t, 1, m.Count())
}

func TestManagerRemoveClosesConnection(t *testing.T) {
	m := newTestManager()
	conn := newTestConnection(&bytes.Buffer{})
	m.Add(conn, httpRequest())

	m.Remove(conn)

	assert.Equal(t, 0, m.Count())
	assert.True(t, conn.IsClosed())
}

func TestManagerRemoveIsIdempotent(t *testing.T) {
	m := newTestManager()
	conn := newTestConnection(&bytes.Buffer{})
	m.Add(conn, httpRequest())

	m.Remove(conn)
	m.Remove(conn)

	assert.Equal(t, 0, m.Count())
}

func TestManagerBroadcastTextReachesEveryConnection(t *testing.T) {
	m := newTestManager()

	const n = 8
	outs := make([]*bytes.Buffer, n)
	for i := 0; i < n; i++ {
		outs[i] = &bytes.Buffer{}
		m.Add(newTestConnection(outs[i]), httpRequest())
	}

	m.BroadcastText("hello")

	for i, out := range outs {
		frame, err := protocol.ReceiveFrame(out)
		require.NoErrorf(t, err, "connection %d", i)
		assert.Equal(t, protocol.OpcodeText, frame.Opcode)
		assert.Equal(t, "hello", string(frame.Payload))
	}
}

func TestManagerBroadcastSkipsClosedConnections(t *testing.T) {
	m := newTestManager()

	live := &bytes.Buffer{}
	dead := &bytes.Buffer{}
	liveConn := newTestConnection(live)
	deadConn := newTestConnection(dead)

	m.Add(liveConn, httpRequest())
	m.Add(deadConn, httpRequest())
	m.Remove(deadConn)

	// Remove's own best-effort Close frame is the only thing dead should
	// ever see; drain it before asserting the broadcast never reaches it.
	closeFrame, err := protocol.ReceiveFrame(dead)
	require.NoError(t, err)
	require.Equal(t, protocol.OpcodeClose, closeFrame.Opcode)

	m.BroadcastText("still here")

	frame, err := protocol.ReceiveFrame(live)
	require.NoError(t, err)
	assert.Equal(t, "still here", string(frame.Payload))
	assert.Zero(t, dead.Len())
}

// TestManagerConcurrentAddRemoveBroadcast Adds n connections up front, then
// hammers Remove and BroadcastText from many goroutines at once; the race
// detector is the actual assertion here, with a deadline as a backstop
// against a stuck lock.
func TestManagerConcurrentAddRemoveBroadcast(t *testing.T) {
	m := newTestManager()
	const n = 100

	conns := make([]*protocol.Connection, n)
	for i := range conns {
		conns[i] = newTestConnection(&discardWriter{})
		m.Add(conns[i], httpRequest())
	}
	require.Equal(t, n, m.Count())

	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(conn *protocol.Connection) {
			defer wg.Done()
			m.Remove(conn)
		}(conns[i])
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.BroadcastText("tick")
			}
		}()
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout: possible deadlock under concurrent add/remove/broadcast")
	}

	assert.Equal(t, 0, m.Count())
}

func TestDefaultManagerIsASingleton(t *testing.T) {
	assert.Same(t, manager.DefaultManager(), manager.DefaultManager())
}

// discardWriter accepts and drops every write, avoiding unbounded memory
// growth across the concurrent broadcast test's many send calls.
type discardWriter struct{ mu sync.Mutex }

func (w *discardWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(p), nil
}

func httpRequest() *http.Request {
	req, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	return req
}
