// File: cmd/broadcast-server/main.go
// Package main
// Broadcast (chat) server: every Text or Binary message any client sends
// is rebroadcast to every connected client, the sender included.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/momentics/wsgateway/api"
	"github.com/momentics/wsgateway/manager"
	"github.com/momentics/wsgateway/protocol"
)

func main() {
	addr := flag.String("addr", ":9002", "WebSocket listen address")
	path := flag.String("path", "/ws", "WebSocket upgrade path")
	metricsAddr := flag.String("metrics-addr", ":9102", "Prometheus /metrics listen address")
	dev := flag.Bool("dev", false, "use zap's development logger (human-readable, no sampling)")
	flag.Parse()

	logger, err := newLogger(*dev)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	metrics := manager.NewMetrics(registry)
	mgr := manager.NewManager(manager.WithLogger(logger), manager.WithMetrics(metrics))

	handler := api.HandlerFuncs{
		OnConnectionEstablishedFunc: func(conn api.Conn, r *http.Request) {
			logger.Info("client connected", zap.Stringer("conn", conn.ID()), zap.String("remote", r.RemoteAddr))
		},
		OnTextMessageFunc: func(msg api.TextMessage) {
			mgr.BroadcastText(msg.Text)
		},
		OnBinaryMessageFunc: func(msg api.BinaryMessage) {
			mgr.BroadcastBinary(msg.Data)
		},
		OnConnectionClosedFunc: func(conn api.Conn) {
			logger.Info("client disconnected", zap.Stringer("conn", conn.ID()))
		},
	}

	upgrader := protocol.NewUpgrader(handler, mgr, logger)

	wsMux := http.NewServeMux()
	wsMux.Handle(*path, upgrader)
	wsSrv := &http.Server{Addr: *addr, Handler: wsMux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: metricsMux}

	go func() {
		logger.Info("broadcast server listening", zap.String("addr", *addr), zap.String("path", *path))
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("websocket listen failed", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("metrics listening", zap.String("addr", *metricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics listen failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	if err := wsSrv.Close(); err != nil {
		logger.Warn("websocket server close failed", zap.Error(err))
	}
	if err := metricsSrv.Close(); err != nil {
		logger.Warn("metrics server close failed", zap.Error(err))
	}
	logger.Info("broadcast server shutdown complete", zap.Int("remaining_connections", mgr.Count()))
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
