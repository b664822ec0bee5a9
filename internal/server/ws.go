package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hupe1980/chatmesh"
	"github.com/hupe1980/chatmesh/core"
)

const wsReadLimit = 1 << 20

// Message types accepted on the websocket.
const (
	WSTypeChat = "chat"
	WSTypeStop = "stop"
)

// ErrTurnQueueFull is reported for a chat frame that arrives while the
// connection's turn queue is full.
var ErrTurnQueueFull = errors.New("turn queue full, request dropped")

// WSMessage is one client frame on /chat/ws. An empty type means chat.
type WSMessage struct {
	Type string `json:"type,omitempty"`
	chatmesh.Request
}

// wsConn serializes writes; the reader reports dropped turns while a turn
// is streaming.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeEvent(ev core.StreamEvent) error {
	raw, err := ev.Encode()
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, raw)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ChatWS runs turns over a websocket. Each chat frame starts a turn whose
// events are written back as JSON text frames; turns on one connection run
// in arrival order. A stop frame cancels the running turn. A chat frame that
// finds the queue full is answered with an error event and not run.
// GET /chat/ws
func (s *Server) ChatWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)
	out := &wsConn{conn: conn}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	var mu sync.Mutex
	stopTurn := context.CancelFunc(func() {})
	queue := make(chan chatmesh.Request, s.wsQueue)

	go func() {
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Warn("Websocket read failed", "error", err)
				}
				return
			}

			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.logger.Warn("Ignoring malformed websocket frame", "error", err)
				continue
			}

			switch msg.Type {
			case WSTypeStop:
				mu.Lock()
				stopTurn()
				mu.Unlock()
			case WSTypeChat, "":
				select {
				case queue <- msg.Request:
				default:
					s.logger.Warn("Websocket queue full, dropping turn", "thread_id", msg.ThreadID)
					ev := core.NewStreamEvent(core.StatusError, msg.ThreadID, msg.Meta)
					ev.Message = ErrTurnQueueFull.Error()
					if err := out.writeEvent(ev); err != nil {
						return
					}
				}
			default:
				s.logger.Warn("Ignoring unknown websocket frame", "type", msg.Type)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-queue:
			turnCtx, turnCancel := context.WithCancel(ctx)
			mu.Lock()
			stopTurn = turnCancel
			mu.Unlock()

			if !s.streamWS(turnCtx, turnCancel, out, req) {
				return nil
			}
		}
	}
}

// streamWS writes the events of one turn; false means the connection is gone.
func (s *Server) streamWS(ctx context.Context, cancel context.CancelFunc, out *wsConn, req chatmesh.Request) bool {
	defer cancel()

	_, events, err := s.mesh.Chat(ctx, req)
	if err != nil {
		ev := core.NewStreamEvent(core.StatusError, req.ThreadID, req.Meta)
		ev.Message = err.Error()
		return out.writeEvent(ev) == nil
	}

	for ev := range events {
		if err := out.writeEvent(ev); err != nil {
			s.logger.Warn("Websocket write failed", "thread_id", ev.ThreadID, "error", err)
			cancel()
			for range events {
			}
			return false
		}
	}
	return true
}
