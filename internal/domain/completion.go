package domain

import (
	"context"
	"encoding/json"
)

// CompletionRequest is one chat completion. A nil Schema asks for free text.
type CompletionRequest struct {
	Prompt     string
	SchemaName string
	Schema     json.Marshaler
}

// Completer is the chat completion contract. Implementations run at temperature 0
// and return the raw message content.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
