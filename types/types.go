package types

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

const (
	TypeWebsocketPing = "ping"
	TypeWebsocketPong = "pong"
	TypeWebsocketChat = "chat"
)

// Message represents a single role-tagged message sent to the provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams are the sampling settings passed to the provider.
type GenerationParams struct {
	MaxTokens        int
	Temperature      float32
	TopP             float32
	FrequencyPenalty float32
	PresencePenalty  float32
}

// Usage is the token accounting reported by a provider, when it reports any.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionChunk is one increment received from a streaming provider.
type CompletionChunk struct {
	Content string
	Usage   *Usage
}
