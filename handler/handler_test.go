package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/docchat-be/logger"
	"github.com/tieubaoca/docchat-be/metrics"
	"github.com/tieubaoca/docchat-be/service"
	"github.com/tieubaoca/docchat-be/types"
)

const testDocument = "Accessible travel guide. Airports must provide assistance on request."

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedRelay answers every message with the same events.
type scriptedRelay struct {
	events []types.StreamEvent
	// hold keeps the channel open after the events until the context ends.
	hold bool
	// gate, when set, holds back every event until it is closed.
	gate chan struct{}

	mu       sync.Mutex
	calls    int
	message  string
	document string
}

func (r *scriptedRelay) Stream(ctx context.Context, message, document string) <-chan types.StreamEvent {
	r.mu.Lock()
	r.calls++
	r.message = message
	r.document = document
	r.mu.Unlock()

	out := make(chan types.StreamEvent, len(r.events))
	if r.gate != nil {
		go func() {
			defer close(out)
			select {
			case <-r.gate:
				for _, ev := range r.events {
					out <- ev
				}
			case <-ctx.Done():
			}
		}()
		return out
	}
	for _, ev := range r.events {
		out <- ev
	}
	if !r.hold {
		close(out)
		return out
	}
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}

func (r *scriptedRelay) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type testServer struct {
	router  *gin.Engine
	relay   *scriptedRelay
	limiter *service.RateLimiter
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, relay *scriptedRelay, store *service.ContextStore) *testServer {
	t.Helper()
	log := logger.NewNop()
	limiter := service.NewRateLimiter(5, time.Minute)
	m := metrics.New()
	chat := NewChatHandler(relay, limiter, store, m, log, 4000)
	router, err := NewRouter(RouterConfig{
		Chat:      chat,
		WebSocket: NewWebSocketHandler(chat, log),
		Document:  NewDocumentHandler(store),
		Metrics:   m,
		Logger:    log,
	})
	require.NoError(t, err)
	return &testServer{router: router, relay: relay, limiter: limiter, metrics: m}
}

func loadedStore() *service.ContextStore {
	return service.NewContextStore(testDocument, types.DocumentInfo{Source: "guide.pdf"})
}

// parseFrames splits an event-stream body into its decoded data frames.
func parseFrames(t *testing.T, body string) []types.StreamEvent {
	t.Helper()
	var events []types.StreamEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "unexpected line %q", line)
		var ev types.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}
