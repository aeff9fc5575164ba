package server

import (
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/igor-ci/igor/pkg/log"
	"github.com/igor-ci/igor/pkg/metrics"
	"github.com/igor-ci/igor/pkg/order"
	"github.com/igor-ci/igor/pkg/protocol"
)

// Handler owns one control connection: it frames incoming bytes, dispatches
// commands, and serialises outgoing frames. It is both an OrderSubscriber
// and an EventSubscriber.
type Handler struct {
	id     string
	conn   net.Conn
	server *Server
	log    zerolog.Logger

	writeMu sync.Mutex
}

func newHandler(conn net.Conn, srv *Server) *Handler {
	id := uuid.NewString()
	return &Handler{
		id:     id,
		conn:   conn,
		server: srv,
		log:    log.WithComponent("server").With().Str("conn_id", id).Logger(),
	}
}

// ID returns the connection's subscriber identity.
func (h *Handler) ID() string { return h.id }

// run reads and dispatches frames until the connection closes, then
// releases the connection's subscriptions. Demand is dropped but orders
// already assigned to this connection stay assigned.
func (h *Handler) run() {
	metrics.ConnectionsActive.Inc()
	defer func() {
		h.server.ordermgr.Unsubscribe(h)
		h.server.eventmgr.Discard(h)
		h.conn.Close()
		metrics.ConnectionsActive.Dec()
		h.log.Debug().Msg("connection closed")
	}()

	h.log.Debug().Str("remote", h.conn.RemoteAddr().String()).Msg("connection open")

	scanner := protocol.NewScanner(h.conn, protocol.ServerTerminator)
	for scanner.Scan() {
		frame := scanner.Bytes()
		if len(frame) == 0 {
			continue
		}
		h.processFrame(frame)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		h.log.Debug().Err(err).Msg("read failed")
	}
}

// processFrame decodes and executes one frame. Protocol errors are returned
// to the client on the same connection; anything else is reported as an
// UnhandledServerError.
func (h *Handler) processFrame(frame []byte) {
	err := h.dispatch(frame)
	if err == nil {
		return
	}
	var perr *protocol.Error
	if errors.As(err, &perr) {
		h.pushObj(perr.ToObj())
		return
	}
	h.log.Error().Err(err).Msg("unhandled error in command dispatch")
	h.pushObj(protocol.UnhandledServerErrorf("%s", err).ToObj())
}

func (h *Handler) dispatch(frame []byte) error {
	var obj map[string]any
	if err := protocol.DecodeFrame(frame, &obj); err != nil {
		return protocol.ClientErrorf("%s", err)
	}
	rawName, ok := obj["command"]
	if !ok {
		return protocol.ClientErrorf("No command given.")
	}
	cmd, perr := lookupCommand(rawName)
	if perr != nil {
		return perr
	}

	rawParams, _ := obj["params"].(map[string]any)
	if rawParams == nil {
		rawParams = map[string]any{}
	}
	params, err := cmd.ParseParams(rawParams)
	if err != nil {
		var p *protocol.Error
		if errors.As(err, &p) {
			return p
		}
		return protocol.ParamErrorf("%s", err)
	}
	return cmd.Execute(h, params)
}

// pushObj serialises the object as a frame and sends it. Frames are written
// whole under the write lock, so delivery order matches enqueue order.
func (h *Handler) pushObj(obj any) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := protocol.WriteFrame(h.conn, obj); err != nil {
		h.log.Debug().Err(err).Msg("write failed")
	}
}

// PushEvent sends an event frame.
func (h *Handler) PushEvent(e protocol.Event) {
	h.pushObj(e.ToObj())
}

// PushOrder sends an assigned order frame.
func (h *Handler) PushOrder(o order.Order) {
	h.pushObj(map[string]any{"order": o.ToObj()})
}
