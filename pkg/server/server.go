package server

import (
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/igor-ci/igor/pkg/log"
	"github.com/igor-ci/igor/pkg/metrics"
	"github.com/igor-ci/igor/pkg/order"
	"github.com/igor-ci/igor/pkg/protocol"
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address; defaults to ":1602".
	Addr string
	// MetricsAddr, when set, serves Prometheus metrics over HTTP.
	MetricsAddr string
}

// Server accepts control connections and owns the order and event managers.
// It never touches git.
type Server struct {
	addr        string
	metricsAddr string

	ordermgr *OrderManager
	eventmgr *EventManager

	ln     net.Listener
	logger zerolog.Logger
}

// NewServer creates a server. The order manager's assignment hook is bound
// to the event manager here, once, so every assignment emits OrderAssigned.
func NewServer(cfg *Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", protocol.DefaultPort)
	}
	s := &Server{
		addr:        addr,
		metricsAddr: cfg.MetricsAddr,
		ordermgr:    NewOrderManager(),
		eventmgr:    NewEventManager(),
		logger:      log.WithComponent("server"),
	}
	s.ordermgr.SetOnAssign(func(o order.Order) {
		metrics.OrdersAssigned.Inc()
		s.eventmgr.PushEvent(protocol.NewEvent(
			protocol.EventOrderAssigned, map[string]any{"order_id": o.ID}))
	})
	return s
}

// OrderManager returns the server's order manager.
func (s *Server) OrderManager() *OrderManager { return s.ordermgr }

// EventManager returns the server's event manager.
func (s *Server) EventManager() *EventManager { return s.eventmgr }

// ListenAndServe listens on the configured address and serves connections
// until Stop is called. Each connection runs in its own goroutine.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.ln = ln
	s.logger.Info().Str("addr", s.addr).Msg("listening")

	if s.metricsAddr != "" {
		go func() {
			if err := metrics.Serve(s.metricsAddr); err != nil {
				s.logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		h := newHandler(conn, s)
		go h.run()
	}
}

// Addr returns the bound listen address, once listening.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop closes the listener. Established connections drain on their own.
func (s *Server) Stop() {
	if s.ln != nil {
		s.ln.Close()
	}
}
