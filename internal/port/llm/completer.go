// Package llm defines the port interface for LLM completion calls.
package llm

import (
	"context"
	"time"
)

// CompletionRequest is one scoring or reconciliation call. The named prompt
// lives on the gateway; Placeholders are substituted server-side.
type CompletionRequest struct {
	Model        string
	Provider     string
	PromptName   string
	Placeholders map[string]string
	Temperature  float64
	Timeout      time.Duration
}

// Completer issues a single completion call and returns the raw text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
