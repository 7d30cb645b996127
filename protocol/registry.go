// File: protocol/registry.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registry is the Manager-shaped contract the receive loop and the
// upgrade handler depend on, without protocol importing the manager
// package, so tests can substitute a local instance.

package protocol

import "net/http"

// Registry indexes live Connections and is notified when one is created
// or should be torn down. Add receives the originating *http.Request so
// the registry can invoke handler.OnConnectionEstablished(conn, request)
// after starting the receive loop.
type Registry interface {
	Add(conn *Connection, r *http.Request)
	Remove(conn *Connection)
}
