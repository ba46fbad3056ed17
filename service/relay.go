package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tieubaoca/docchat-be/logger"
	"github.com/tieubaoca/docchat-be/types"
	"golang.org/x/time/rate"
)

// Generation settings are policy for every request, never taken from clients.
var generationParams = types.GenerationParams{
	MaxTokens:        500,
	Temperature:      0.5,
	TopP:             1.0,
	FrequencyPenalty: 0.2,
	PresencePenalty:  0.3,
}

const systemPrompt = `You are a helpful AI assistant that answers questions based on the provided document.

Instructions:
- Answer questions accurately using only the document content
- If the user asks in Spanish, respond in Spanish
- If the user asks in English, respond in English
- Be clear and concise in your responses
- If the information is not in the document, say so clearly

Document content:
%s`

const errorPrefix = "Error generating response: "

// BuildMessages returns the system instruction carrying the document followed
// by the user's question.
func BuildMessages(message, document string) []types.Message {
	return []types.Message{
		{Role: types.RoleSystem, Content: fmt.Sprintf(systemPrompt, document)},
		{Role: types.RoleUser, Content: message},
	}
}

type RelayConfig struct {
	Timeout         time.Duration
	BufferSize      int
	UpstreamQPS     float64
	UpstreamBurst   int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	CostPer1KTokens float64
}

// CompletionRelay turns a provider's streaming completion into a sequence of
// StreamEvents terminated by exactly one done or error event.
type CompletionRelay struct {
	provider CompletionProvider
	config   RelayConfig
	limiter  *rate.Limiter
	breaker  *gobreaker.TwoStepCircuitBreaker
	logger   *logger.Logger
}

func NewCompletionRelay(provider CompletionProvider, config RelayConfig, log *logger.Logger) *CompletionRelay {
	if config.BufferSize <= 0 {
		config.BufferSize = 64
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	r := &CompletionRelay{
		provider: provider,
		config:   config,
		logger:   log.With("component", "CompletionRelay", "provider", provider.Name()),
	}

	r.limiter = rate.NewLimiter(rate.Inf, 0)
	if config.UpstreamQPS > 0 {
		burst := config.UpstreamBurst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(config.UpstreamQPS), burst)
	}

	// Two-step so that failures surfacing mid-stream count, not only failures
	// to open the stream.
	if config.BreakerFailures > 0 {
		r.breaker = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
			Name:    "upstream-" + provider.Name(),
			Timeout: config.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.BreakerFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				r.logger.Warn("Upstream circuit breaker changed state", "name", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return r
}

// Stream starts a completion for message against document. The returned
// channel is closed after the terminal event, or without one when ctx is
// cancelled because nobody is listening anymore.
func (r *CompletionRelay) Stream(ctx context.Context, message, document string) <-chan types.StreamEvent {
	out := make(chan types.StreamEvent, r.config.BufferSize)
	go r.run(ctx, message, document, out)
	return out
}

func (r *CompletionRelay) run(ctx context.Context, message, document string, out chan<- types.StreamEvent) {
	em := &emitter{ctx: ctx, out: out}
	defer close(out)

	streamCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	if err := r.limiter.Wait(streamCtx); err != nil {
		r.fail(ctx, streamCtx, em, fmt.Errorf("waiting for upstream capacity: %w", err))
		return
	}

	var done func(success bool)
	if r.breaker != nil {
		var err error
		if done, err = r.breaker.Allow(); err != nil {
			r.fail(ctx, streamCtx, em, err)
			return
		}
	}

	err := r.relay(streamCtx, em, BuildMessages(message, document))
	if done != nil {
		// A caller giving up says nothing about upstream health.
		done(err == nil || ctx.Err() != nil)
	}
	if err != nil {
		r.fail(ctx, streamCtx, em, err)
	}
}

// relay copies the upstream stream into em. It returns nil once the done event
// is out; any panic from the provider comes back as an error.
func (r *CompletionRelay) relay(ctx context.Context, em *emitter, messages []types.Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Completion relay panicked", "panic", p)
			err = fmt.Errorf("%v", p)
		}
	}()

	started := time.Now()
	stream, err := r.provider.OpenStream(ctx, messages, generationParams)
	if err != nil {
		return err
	}
	defer stream.Close()

	chunks := 0
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			r.logger.Debug("Completion finished", "chunks", chunks, "elapsed", time.Since(started))
			em.terminate(types.DoneEvent())
			return nil
		}
		if err != nil {
			return err
		}
		if chunk.Usage != nil {
			r.logUsage(*chunk.Usage)
		}
		if chunk.Content == "" {
			continue
		}
		chunks++
		if !em.emit(types.ContentEvent(chunk.Content)) {
			r.logger.Debug("Client went away, abandoning completion", "chunks", chunks)
			return context.Canceled
		}
	}
}

// fail emits the error event for err unless the client is already gone.
func (r *CompletionRelay) fail(ctx, streamCtx context.Context, em *emitter, err error) {
	if ctx.Err() != nil {
		r.logger.Debug("Completion abandoned", "error", err)
		return
	}
	detail := err.Error()
	switch {
	case errors.Is(streamCtx.Err(), context.DeadlineExceeded):
		detail = fmt.Sprintf("response timed out after %s", r.config.Timeout)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		detail = "the AI service is temporarily unavailable, please try again later"
	}
	r.logger.Error("Completion failed", "error", err)
	em.terminate(types.ErrorEvent(errorPrefix + detail))
}

func (r *CompletionRelay) logUsage(usage types.Usage) {
	cost := float64(usage.TotalTokens) * r.config.CostPer1KTokens / 1000
	r.logger.Info("Token usage",
		"promptTokens", usage.PromptTokens,
		"completionTokens", usage.CompletionTokens,
		"totalTokens", usage.TotalTokens,
		"estimatedCostUSD", fmt.Sprintf("%.6f", cost),
	)
}

// Collect runs a completion to the end and returns the concatenated content.
func (r *CompletionRelay) Collect(ctx context.Context, message, document string) (string, error) {
	var sb strings.Builder
	for event := range r.Stream(ctx, message, document) {
		switch event.Type {
		case types.EventContent:
			sb.WriteString(event.Content)
		case types.EventError:
			return sb.String(), errors.New(event.Content)
		case types.EventDone:
			return sb.String(), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return sb.String(), err
	}
	return sb.String(), errors.New("completion ended without a result")
}

// emitter enforces the single terminal event rule on a relay's output.
type emitter struct {
	ctx        context.Context
	out        chan<- types.StreamEvent
	terminated bool
}

// emit sends a non-terminal event. It returns false once the stream is over
// or the consumer has gone.
func (e *emitter) emit(event types.StreamEvent) bool {
	if e.terminated {
		return false
	}
	select {
	case e.out <- event:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *emitter) terminate(event types.StreamEvent) {
	if e.terminated {
		return
	}
	e.terminated = true
	select {
	case e.out <- event:
	case <-e.ctx.Done():
	}
}
