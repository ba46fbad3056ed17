package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docchat-be/logger"
	"github.com/tieubaoca/docchat-be/metrics"
	"github.com/tieubaoca/docchat-be/types"
)

const errStreamEnded = "Error generating response: stream ended unexpectedly"

var eventStreamHeaders = map[string]string{
	"Content-Type":                 "text/event-stream",
	"Cache-Control":                "no-cache",
	"Connection":                   "keep-alive",
	"X-Accel-Buffering":            "no",
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "POST, GET, OPTIONS",
	"Access-Control-Allow-Headers": "*",
}

// writeEventStream commits a 200 event-stream response and writes each event
// as its own flushed frame until the terminal event. It returns the terminal
// event type written, or "" when the client went away first.
func writeEventStream(c *gin.Context, events <-chan types.StreamEvent, m *metrics.Metrics, log *logger.Logger) (result types.EventType) {
	header := c.Writer.Header()
	for k, v := range eventStreamHeaders {
		header.Set(k, v)
	}
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	defer func() {
		if p := recover(); p != nil {
			log.Error("Stream transport panicked", "panic", p)
			if err := writeFrame(c.Writer, types.ErrorEvent(fmt.Sprintf("Error generating response: %v", p))); err == nil {
				m.Event(string(types.EventError))
				result = types.EventError
			}
		}
	}()

	return pumpEvents(c.Request.Context(), events, func(event types.StreamEvent) error {
		if err := writeFrame(c.Writer, event); err != nil {
			return err
		}
		m.Event(string(event.Type))
		return nil
	}, log)
}

// pumpEvents hands events to write in order until a terminal event has been
// written. A channel closed without a terminal event gets a synthesized error.
func pumpEvents(ctx context.Context, events <-chan types.StreamEvent, write func(types.StreamEvent) error, log *logger.Logger) types.EventType {
	for {
		select {
		case <-ctx.Done():
			log.Debug("Client disconnected mid-stream")
			return ""
		case event, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ""
				}
				event = types.ErrorEvent(errStreamEnded)
			}
			if err := write(event); err != nil {
				log.Debug("Failed to write stream event", "error", err)
				return ""
			}
			if event.IsTerminal() {
				return event.Type
			}
		}
	}
}

func writeFrame(w gin.ResponseWriter, event types.StreamEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// encodeEvent marshals without HTML escaping so text reaches the client as is.
func encodeEvent(event types.StreamEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(event); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
