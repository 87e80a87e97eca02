package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"groceryDelivery/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is sent back to the agent after every fix.
type wsMessage struct {
	Type  string `json:"type"` // tracking | error
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleAgentWS accepts a stream of LocationFix JSON frames from the authenticated
// agent and answers each with the resulting tracking updates.
func (s *Server) handleAgentWS(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	out := make(chan wsMessage, 16)
	go s.wsWritePump(ctx, cancel, conn, out)

	s.logger.Info("agent websocket connected", zap.Int64("agent_id", p.ID))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("agent websocket read", zap.Int64("agent_id", p.ID), zap.Error(err))
			}
			return
		}
		var fix models.LocationFix
		msg := wsMessage{Type: "tracking"}
		if err := json.Unmarshal(data, &fix); err != nil {
			msg = wsMessage{Type: "error", Error: "invalid location fix"}
		} else if updates, err := s.Tracking.ReportLocation(ctx, p, fix); err != nil {
			if statusFor(err) == http.StatusInternalServerError {
				s.logger.Error("agent websocket report", zap.Int64("agent_id", p.ID), zap.Error(err))
				err = errors.New("internal error")
			}
			msg = wsMessage{Type: "error", Error: err.Error()}
		} else {
			msg.Data = updates
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// wsWritePump owns all writes to conn. It cancels the connection context when it exits.
func (s *Server) wsWritePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan wsMessage) {
	defer cancel()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
