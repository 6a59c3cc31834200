package deckerr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	llmclient "deckflow/internal/llmClient"
)

// GenerationError is a provider or transport failure, including timeouts.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Stage, e.Err)
}
func (e *GenerationError) Unwrap() error { return e.Err }

// SchemaParseError is structured output that did not decode or validate.
type SchemaParseError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("schema parse failed (%s): %v", e.Stage, e.Err)
}
func (e *SchemaParseError) Unwrap() error { return e.Err }

// FitOverflowError describes a placeholder whose content exceeds capacity.
// The fit engine resolves it to truncation; it never leaves that package.
type FitOverflowError struct {
	Placeholder int
	MaxChars    int
	MaxLines    int
}

func (e *FitOverflowError) Error() string {
	return fmt.Sprintf("placeholder %d overflows (max %d chars, %d lines)", e.Placeholder, e.MaxChars, e.MaxLines)
}

// RenderError is returned by renderers for invalid or unsupported markup.
type RenderError struct {
	Type    string
	Message string
}

func (e *RenderError) Error() string {
	if e.Type == "" {
		return "render failed: " + e.Message
	}
	return fmt.Sprintf("render %s failed: %s", e.Type, e.Message)
}

// NoValidCandidateError means every candidate of a stage failed.
type NoValidCandidateError struct {
	Stage    string
	Attempts int
	Errs     []error
}

func (e *NoValidCandidateError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return fmt.Sprintf("no valid candidate for %s after %d attempts: %s", e.Stage, e.Attempts, strings.Join(msgs, "; "))
}

// Unwrap exposes every candidate failure to errors.Is/As.
func (e *NoValidCandidateError) Unwrap() []error { return e.Errs }

func Generation(stage string, err error) error {
	if err == nil {
		return nil
	}
	var gen *GenerationError
	if errors.As(err, &gen) {
		return err
	}
	return &GenerationError{Stage: stage, Err: err}
}

func SchemaParse(stage string, raw []byte, err error) error {
	if err == nil {
		return nil
	}
	return &SchemaParseError{Stage: stage, Raw: string(raw), Err: err}
}

// Retryable reports whether another attempt may succeed. Cancellation and
// permanent provider errors are fatal; a deadline on a single call is not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var perm *llmclient.PermanentError
	if errors.As(err, &perm) {
		return false
	}
	var (
		gen    *GenerationError
		parse  *SchemaParseError
		render *RenderError
		fit    *FitOverflowError
	)
	switch {
	case errors.As(err, &gen), errors.As(err, &parse), errors.As(err, &render), errors.As(err, &fit):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}
