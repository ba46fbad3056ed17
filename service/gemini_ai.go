package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/tieubaoca/docchat-be/types"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var ErrNoAPIKeys = errors.New("no API keys provided")

// GeminiService streams completions from Gemini, rotating to the next API key
// when a stream fails before producing any content.
type GeminiService struct {
	apiKeys    []string
	currentKey int
	current    *geminiClient
	modelName  string
	mu         sync.Mutex
}

// geminiClient counts the streams using a client so that a client retired by
// key rotation is closed only after its last stream ends.
type geminiClient struct {
	client  *genai.Client
	refs    int
	retired bool
}

func NewGeminiService(ctx context.Context, apiKeys []string, modelName string) (*GeminiService, error) {
	if len(apiKeys) == 0 {
		return nil, ErrNoAPIKeys
	}

	service := &GeminiService{
		apiKeys:   apiKeys,
		modelName: modelName,
	}

	if err := service.initClient(ctx); err != nil {
		return nil, err
	}
	return service, nil
}

func (s *GeminiService) Name() string {
	return "gemini"
}

func (s *GeminiService) initClient(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initClientLocked(ctx)
}

func (s *GeminiService) initClientLocked(ctx context.Context) error {
	client, err := genai.NewClient(ctx, option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return fmt.Errorf("create gemini client: %w", err)
	}
	s.current = &geminiClient{client: client}
	return nil
}

func (s *GeminiService) acquire() *geminiClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.refs++
	return s.current
}

func (s *GeminiService) release(c *geminiClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.refs--
	if c.retired && c.refs == 0 {
		_ = c.client.Close()
	}
}

// retireLocked takes c out of service, closing it now if no stream holds it.
func (s *GeminiService) retireLocked(c *geminiClient) {
	c.retired = true
	if c.refs == 0 {
		_ = c.client.Close()
	}
}

// rotateAPIKey switches to the next key unless another stream already moved
// past failed.
func (s *GeminiService) rotateAPIKey(ctx context.Context, failed *geminiClient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != failed {
		return nil
	}
	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
	previous := s.current
	if err := s.initClientLocked(ctx); err != nil {
		return err
	}
	s.retireLocked(previous)
	return nil
}

// Close releases the current client once in-flight streams are done with it.
func (s *GeminiService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retireLocked(s.current)
	return nil
}

func (s *GeminiService) OpenStream(ctx context.Context, messages []types.Message, params types.GenerationParams) (CompletionStream, error) {
	system, parts := splitGeminiMessages(messages)
	if len(parts) == 0 {
		return nil, errors.New("no user message to send")
	}

	client := s.acquire()
	stream := &geminiStream{
		ctx:     ctx,
		iter:    s.model(client.client, system, params).GenerateContentStream(ctx, parts...),
		release: func() { s.release(client) },
	}
	stream.retry = func() (contentIterator, error) {
		if err := s.rotateAPIKey(ctx, client); err != nil {
			return nil, fmt.Errorf("rotate key: %w", err)
		}
		stream.release()
		client = s.acquire()
		stream.release = func() { s.release(client) }
		return s.model(client.client, system, params).GenerateContentStream(ctx, parts...), nil
	}
	return stream, nil
}

// model builds a per-request model so the system instruction never leaks
// between concurrent streams. Gemini ignores the penalty parameters.
func (s *GeminiService) model(client *genai.Client, system string, params types.GenerationParams) *genai.GenerativeModel {
	model := client.GenerativeModel(s.modelName)
	model.SetMaxOutputTokens(int32(params.MaxTokens))
	model.SetTemperature(params.Temperature)
	model.SetTopP(params.TopP)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	return model
}

func splitGeminiMessages(messages []types.Message) (string, []genai.Part) {
	var system []string
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		parts = append(parts, genai.Text(msg.Content))
	}
	return strings.Join(system, "\n\n"), parts
}

// contentIterator is the part of *genai.GenerateContentResponseIterator a
// stream reads from.
type contentIterator interface {
	Next() (*genai.GenerateContentResponse, error)
}

type geminiStream struct {
	ctx  context.Context
	iter contentIterator
	// retry replaces iter after a failure before any content; nil once spent.
	retry     func() (contentIterator, error)
	release   func()
	closeOnce sync.Once
	started   bool
	pending   []string
	finished  bool
}

func (g *geminiStream) Recv() (types.CompletionChunk, error) {
	for len(g.pending) == 0 {
		if g.finished {
			return types.CompletionChunk{}, io.EOF
		}
		resp, err := g.iter.Next()
		if errors.Is(err, iterator.Done) {
			g.finished = true
			continue
		}
		if err != nil {
			if g.started || g.retry == nil || g.ctx.Err() != nil {
				return types.CompletionChunk{}, fmt.Errorf("gemini stream: %w", err)
			}
			retry := g.retry
			g.retry = nil
			iter, rerr := retry()
			if rerr != nil {
				return types.CompletionChunk{}, fmt.Errorf("gemini stream: %w (%v)", err, rerr)
			}
			g.iter = iter
			continue
		}
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok && text != "" {
					g.pending = append(g.pending, string(text))
				}
			}
		}
	}

	g.started = true
	text := g.pending[0]
	g.pending = g.pending[1:]
	return types.CompletionChunk{Content: text}, nil
}

func (g *geminiStream) Close() error {
	g.closeOnce.Do(func() {
		if g.release != nil {
			g.release()
		}
	})
	return nil
}
