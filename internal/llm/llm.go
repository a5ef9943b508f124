package llm

import (
	"context"
	"errors"
)

// Roles used in chat conversations.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ErrNotConfigured is returned by PlaceholderClient.
var ErrNotConfigured = errors.New("llm client not configured")

// Message is one turn of a chat conversation. ImageURL, when set, attaches
// an image (usually a data: URL) next to the text content.
type Message struct {
	Role     string
	Content  string
	ImageURL string
}

// Params are the generation parameters sent with a completion request.
type Params struct {
	MaxTokens         int
	Temperature       float64
	TopP              float64
	TopK              int
	RepetitionPenalty float64
	Stop              []string
}

// CompletionRequest is a single non-streaming chat completion.
type CompletionRequest struct {
	Model    string
	Messages []Message
	Params   Params
}

// Client submits a conversation and returns the text of the first choice.
// An empty completion is not an error at this layer.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// DefaultExtractionParams returns the fixed parameters used for invoice extraction.
func DefaultExtractionParams() Params {
	return Params{
		MaxTokens:         1024,
		Temperature:       0.7,
		TopP:              0.7,
		TopK:              50,
		RepetitionPenalty: 1,
		Stop:              []string{"<|eot_id|>", "<|eom_id|>"},
	}
}

// PlaceholderClient fails every request; it backs processes started without credentials.
type PlaceholderClient struct{}

// Complete implements Client.
func (PlaceholderClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	_ = ctx
	_ = req
	return "", ErrNotConfigured
}
