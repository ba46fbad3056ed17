package types

// ErrorResponse is returned for every failure that happens before a stream
// starts.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type PDFInfoResponse struct {
	Status  string `json:"status,omitempty"`
	Length  int    `json:"length,omitempty"`
	Preview string `json:"preview,omitempty"`
	Error   string `json:"error,omitempty"`
}

type WebSocketPong struct {
	Type string `json:"type"`
}
