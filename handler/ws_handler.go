package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tieubaoca/docchat-be/logger"
	"github.com/tieubaoca/docchat-be/metrics"
	"github.com/tieubaoca/docchat-be/types"
)

const (
	wsReadLimit  = 64 * 1024
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsWriteWait  = 10 * time.Second
	// Messages that may wait while an answer is streaming; more are refused.
	wsQueueSize = 4
)

// WebSocketHandler serves the chat protocol over a websocket: every inbound
// {"message": ...} is answered with the same events the SSE endpoint sends.
type WebSocketHandler struct {
	chat     *ChatHandler
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

func NewWebSocketHandler(chat *ChatHandler, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		chat: chat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: log.With("component", "WebSocketHandler"),
	}
}

func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	clientID := c.ClientIP()
	log := h.logger.With("clientID", clientID)

	conn.SetReadLimit(wsReadLimit)
	if err := extendReadDeadline(conn); err != nil {
		log.Warn("Failed to set websocket read deadline", "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return extendReadDeadline(conn)
	})

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The reader never blocks on the handler so that a close is noticed even
	// while an answer is streaming.
	inbound := make(chan []byte, wsQueueSize)
	closed := make(chan struct{})
	var dropped atomic.Int32
	go func() {
		defer close(closed)
		for {
			_, p, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("Websocket read error", "error", err)
				}
				return
			}
			if err := extendReadDeadline(conn); err != nil {
				return
			}
			select {
			case inbound <- p:
			default:
				dropped.Add(1)
			}
		}
	}()
	go keepAlive(conn, closed, log)

	for {
		select {
		case <-closed:
			return
		case p := <-inbound:
			if err := h.handleMessage(ctx, conn, clientID, p, closed, log); err != nil {
				log.Debug("Websocket closed while answering", "error", err)
				return
			}
			for n := dropped.Swap(0); n > 0; n-- {
				if err := h.rejectMessage(conn, clientID, errQueueFull); err != nil {
					return
				}
			}
		}
	}
}

// keepAlive pings the client until the connection closes; the pong handler
// pushes the read deadline forward.
func keepAlive(conn *websocket.Conn, closed <-chan struct{}, log *logger.Logger) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				log.Debug("Websocket ping failed", "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, clientID string, p []byte, closed <-chan struct{}, log *logger.Logger) error {
	var req types.ChatRequest
	if err := json.Unmarshal(p, &req); err != nil {
		return writeJSON(conn, types.ErrorEvent(errInvalidBody.detail))
	}
	if req.Type == types.TypeWebsocketPing {
		return writeJSON(conn, types.WebSocketPong{Type: types.TypeWebsocketPong})
	}

	if apiErr := h.chat.admit(clientID); apiErr != nil {
		return h.rejectMessage(conn, clientID, apiErr)
	}
	document, apiErr := h.chat.validate(req.Message)
	if apiErr != nil {
		return h.rejectMessage(conn, clientID, apiErr)
	}

	qctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-closed:
			cancel()
		case <-qctx.Done():
		}
	}()

	h.chat.metrics.Request("websocket", metrics.OutcomeStreamed)
	finished := h.chat.metrics.StreamStarted()
	defer finished()

	var writeErr error
	result := pumpEvents(qctx, h.chat.relay.Stream(qctx, req.Message, document), func(event types.StreamEvent) error {
		if err := writeJSON(conn, event); err != nil {
			writeErr = err
			return err
		}
		h.chat.metrics.Event(string(event.Type))
		return nil
	}, log)
	if result == "" {
		if writeErr != nil {
			return writeErr
		}
		return qctx.Err()
	}
	log.Info("Websocket answer finished", "result", result)
	return nil
}

func (h *WebSocketHandler) rejectMessage(conn *websocket.Conn, clientID string, apiErr *apiError) error {
	h.chat.metrics.Request("websocket", apiErr.outcome)
	h.logger.Warn("Rejected websocket message", "clientID", clientID, "detail", apiErr.detail)
	return writeJSON(conn, types.ErrorEvent(apiErr.detail))
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func extendReadDeadline(conn *websocket.Conn) error {
	return conn.SetReadDeadline(time.Now().Add(wsPongWait))
}
