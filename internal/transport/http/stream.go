package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/xiaot623/gogo/segmenter/internal/config"
	"github.com/xiaot623/gogo/segmenter/internal/hub"
)

// StreamHandler serves the run event stream over WebSocket.
type StreamHandler struct {
	hub          *hub.Hub
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(cfg *config.Config, h *hub.Hub) *StreamHandler {
	pingInterval := cfg.WSPingInterval
	if pingInterval <= 0 {
		pingInterval = config.DefaultWSPingInterval
	}
	writeTimeout := cfg.WSWriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = config.DefaultWSWriteTimeout
	}

	return &StreamHandler{
		hub:          h,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The mobile client connects from arbitrary origins.
				return true
			},
		},
	}
}

// RegisterRoutes registers the stream route with the echo server.
func (s *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleWebSocket)
}

// HandleWebSocket upgrades the request and subscribes it to run events.
func (s *StreamHandler) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	// Subscribers only listen; cap anything they send.
	ws.SetReadLimit(1024)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump drains the connection so close and pong frames are processed.
func (s *StreamHandler) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	readTimeout := 2 * s.pingInterval
	conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

// writePump writes queued events and keepalive pings.
func (s *StreamHandler) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
