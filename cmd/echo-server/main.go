// File: cmd/echo-server/main.go
// Package main
// Echo server: every Text/Binary message a client sends is sent straight
// back to that same client.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/momentics/wsgateway/api"
	"github.com/momentics/wsgateway/manager"
	"github.com/momentics/wsgateway/protocol"
)

func main() {
	addr := flag.String("addr", ":9001", "WebSocket listen address")
	path := flag.String("path", "/ws", "WebSocket upgrade path")
	dev := flag.Bool("dev", false, "use zap's development logger (human-readable, no sampling)")
	flag.Parse()

	logger, err := newLogger(*dev)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	mgr := manager.NewManager(manager.WithLogger(logger))

	handler := api.HandlerFuncs{
		OnConnectionEstablishedFunc: func(conn api.Conn, r *http.Request) {
			logger.Info("client connected", zap.Stringer("conn", conn.ID()), zap.String("remote", r.RemoteAddr))
		},
		OnTextMessageFunc: func(msg api.TextMessage) {
			if err := msg.Conn.SendText(msg.Text); err != nil {
				logger.Warn("echo send failed", zap.Stringer("conn", msg.Conn.ID()), zap.Error(err))
			}
		},
		OnBinaryMessageFunc: func(msg api.BinaryMessage) {
			if err := msg.Conn.SendBinary(msg.Data); err != nil {
				logger.Warn("echo send failed", zap.Stringer("conn", msg.Conn.ID()), zap.Error(err))
			}
		},
		OnConnectionClosedFunc: func(conn api.Conn) {
			logger.Info("client disconnected", zap.Stringer("conn", conn.ID()))
		},
	}

	upgrader := protocol.NewUpgrader(handler, mgr, logger)

	mux := http.NewServeMux()
	mux.Handle(*path, upgrader)

	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		logger.Info("echo server listening", zap.String("addr", *addr), zap.String("path", *path))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	if err := srv.Close(); err != nil {
		logger.Warn("server close failed", zap.Error(err))
	}
	logger.Info("echo server shutdown complete", zap.Int("remaining_connections", mgr.Count()))
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
