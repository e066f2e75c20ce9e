package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // mobile clients connect from app webviews
	},
}

func (s *Server) handleScoreStream(c echo.Context) error {
	challengeID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	// Reject streams for challenges that don't exist before upgrading.
	if _, err := s.app.GetChallenge(c.Request().Context(), challengeID); err != nil {
		return mapDomainError(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	if err := s.hub.Register(challengeID, conn); err != nil {
		slog.Warn("score stream registration rejected", "challenge_id", challengeID, "error", err)
		return nil
	}

	// Read pump, blocks until the connection closes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(challengeID, conn)
	return nil //nolint:nilerr // ReadMessage err is block-scoped; outer err is nil
}
