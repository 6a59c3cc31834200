package llmclient

import (
	"context"
	"encoding/json"
	"errors"
)

// LLMClient is the generation service boundary: a prompt plus a JSON input
// go in, raw JSON comes out. Decoding and validation happen in llmtool.
type LLMClient interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}

var ErrInvalidJSON = errors.New("invalid json from LLM")

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// composePrompt appends the input as an indented JSON block.
func composePrompt(prompt string, input any) string {
	if input == nil {
		return prompt
	}
	in, _ := json.MarshalIndent(input, "", "  ")
	return prompt + "\n\n[INPUT JSON]\n" + string(in)
}
