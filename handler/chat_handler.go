package handler

import (
	"context"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docchat-be/logger"
	"github.com/tieubaoca/docchat-be/metrics"
	"github.com/tieubaoca/docchat-be/middleware"
	"github.com/tieubaoca/docchat-be/service"
	"github.com/tieubaoca/docchat-be/types"
)

// Relay produces the event stream answering one message.
type Relay interface {
	Stream(ctx context.Context, message, document string) <-chan types.StreamEvent
}

type ChatHandler struct {
	relay           Relay
	limiter         *service.RateLimiter
	store           *service.ContextStore
	metrics         *metrics.Metrics
	logger          *logger.Logger
	maxMessageChars int
}

func NewChatHandler(relay Relay, limiter *service.RateLimiter, store *service.ContextStore, m *metrics.Metrics, log *logger.Logger, maxMessageChars int) *ChatHandler {
	return &ChatHandler{
		relay:           relay,
		limiter:         limiter,
		store:           store,
		metrics:         m,
		logger:          log.With("component", "ChatHandler"),
		maxMessageChars: maxMessageChars,
	}
}

// HandleChat answers POST /chat with a server-sent event stream.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	clientID := c.ClientIP()
	if !h.limiter.Admit(clientID) {
		retry := h.limiter.RetryAfter(clientID)
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		h.reject(c, "sse", clientID, errRateLimited)
		return
	}

	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, "sse", clientID, errInvalidBody)
		return
	}

	document, apiErr := h.validate(req.Message)
	if apiErr != nil {
		h.reject(c, "sse", clientID, apiErr)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	h.metrics.Request("sse", metrics.OutcomeStreamed)
	finished := h.metrics.StreamStarted()
	defer finished()

	log := h.logger.With("clientID", clientID, "requestID", c.GetString(middleware.RequestIDKey))
	log.Info("Streaming chat response", "messageChars", utf8.RuneCountInString(req.Message))
	result := writeEventStream(c, h.relay.Stream(ctx, req.Message, document), h.metrics, log)
	if result == "" {
		log.Info("Chat stream abandoned by client")
		return
	}
	log.Info("Chat stream finished", "result", result)
}

// admit applies the rate limit for a request that has no HTTP response to
// carry headers, such as a websocket message.
func (h *ChatHandler) admit(clientID string) *apiError {
	if !h.limiter.Admit(clientID) {
		return errRateLimited
	}
	return nil
}

// validate checks the message and returns the document to answer from.
func (h *ChatHandler) validate(message string) (string, *apiError) {
	if strings.TrimSpace(message) == "" {
		return "", errMessageRequired
	}
	if utf8.RuneCountInString(message) > h.maxMessageChars {
		return "", errMessageTooLong
	}
	document, err := h.store.Text()
	if err != nil {
		return "", errNoContext
	}
	return document, nil
}

func (h *ChatHandler) reject(c *gin.Context, transport, clientID string, err *apiError) {
	h.metrics.Request(transport, err.outcome)
	h.logger.Warn("Rejected chat request", "clientID", clientID, "status", err.status, "detail", err.detail)
	sendError(c, err)
}
