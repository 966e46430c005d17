package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a backend answers with no content.
var ErrEmptyResponse = errors.New("llm returned an empty response")

type GenerationParams struct {
	// System is the system prompt. Backends fall back to a generic persona.
	System      string   `json:"system"`
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	// JSONMode asks the backend to constrain output to a JSON object.
	JSONMode bool `json:"json_mode"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Temperature returns a pointer for GenerationParams.Temperature.
func Temperature(t float32) *float32 {
	return &t
}
