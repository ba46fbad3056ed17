package service

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/tieubaoca/docchat-be/types"
)

type OpenAIService struct {
	client *openai.Client
	model  string
}

// NewOpenAIService creates a provider for OpenAI or any server exposing the
// same chat completions API at baseURL.
func NewOpenAIService(baseURL, apiKey, model string) *OpenAIService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIService{
		client: client,
		model:  model,
	}
}

func (s *OpenAIService) Name() string {
	return "openai"
}

func (s *OpenAIService) OpenStream(ctx context.Context, messages []types.Message, params types.GenerationParams) (CompletionStream, error) {
	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	stream, err := s.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{
			Model:            s.model,
			Messages:         openaiMessages,
			MaxTokens:        params.MaxTokens,
			Temperature:      params.Temperature,
			TopP:             params.TopP,
			FrequencyPenalty: params.FrequencyPenalty,
			PresencePenalty:  params.PresencePenalty,
			Stream:           true,
			StreamOptions:    &openai.StreamOptions{IncludeUsage: true},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create chat completion stream: %w", err)
	}
	return &openAIStream{stream: stream}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (types.CompletionChunk, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		// io.EOF is passed through untouched.
		return types.CompletionChunk{}, err
	}

	var chunk types.CompletionChunk
	// The usage chunk arrives with an empty choices list.
	if len(resp.Choices) > 0 {
		chunk.Content = resp.Choices[0].Delta.Content
	}
	if resp.Usage != nil {
		chunk.Usage = &types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return chunk, nil
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
