package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/chatrelay/internal/broadcast"
	"github.com/pscheid92/chatrelay/internal/domain"
	"github.com/pscheid92/chatrelay/internal/platform/correlation"
	apperrors "github.com/pscheid92/chatrelay/internal/platform/errors"
)

// maxMessageSize bounds one inbound frame.
const maxMessageSize = 4096

func (s *Server) handleRoot(c echo.Context) error {
	if websocket.IsWebSocketUpgrade(c.Request()) {
		return s.handleWebSocket(c)
	}
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if reason, ok := s.limits.Acquire(ip); !ok {
		return apperrors.RejectedError("too many connections").WithContext("reason", string(reason))
	}
	defer s.limits.Release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error response.
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "remote_ip", ip, "error", err)
		return nil
	}
	conn.SetReadLimit(maxMessageSize)

	// The connection outlives the request as far as cancellation is concerned.
	ctx := context.WithoutCancel(c.Request().Context())
	writer := broadcast.NewWriter(conn, s.clock, s.config.SendQueueSize)

	id, err := s.relay.Open(ctx, writer)
	if err != nil {
		slog.WarnContext(ctx, "Failed to open connection", "remote_ip", ip, "error", err)
		writer.Terminate()
		return nil
	}
	ctx = correlation.WithID(ctx, id.String())
	writer.OnPong(func() { s.relay.Pong(id) })

	s.readPump(ctx, id, conn)
	s.relay.Disconnect(ctx, id, domain.CloseAbort, "")
	return nil
}

func (s *Server) readPump(ctx context.Context, id domain.ConnectionID, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logReadError(ctx, id, err)
			return
		}
		s.relay.HandleMessage(ctx, id, data)
	}
}

func logReadError(ctx context.Context, id domain.ConnectionID, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		slog.InfoContext(ctx, "Closing connection that exceeded the frame size limit", "conn_id", id.String())
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		slog.DebugContext(ctx, "WebSocket read ended unexpectedly", "conn_id", id.String(), "error", err)
	}
}
