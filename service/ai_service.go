package service

import (
	"context"

	"github.com/tieubaoca/docchat-be/types"
)

// CompletionStream is an open streaming completion. Recv returns io.EOF once
// the provider signals completion.
type CompletionStream interface {
	Recv() (types.CompletionChunk, error)
	Close() error
}

// CompletionProvider is an upstream language model that can stream a reply to
// a list of role-tagged messages.
type CompletionProvider interface {
	Name() string
	OpenStream(ctx context.Context, messages []types.Message, params types.GenerationParams) (CompletionStream, error)
}
