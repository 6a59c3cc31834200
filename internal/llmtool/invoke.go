package llmtool

import (
	"context"
	"encoding/json"
	"fmt"

	"deckflow/internal/deckerr"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/util/jsonutil"
)

// Validator is implemented by outputs that can check themselves after decoding.
type Validator interface {
	Validate() error
}

// Call is one structured request: a spec rendered as the prompt and an
// input payload sent alongside it.
type Call struct {
	Stage string
	Spec  StructuredPromptSpec
	Input any
}

// Invoke renders the prompt, calls the client under the stage phase and
// decodes the response into T. Transport failures come back as
// GenerationError; undecodable or invalid output as SchemaParseError.
func Invoke[T any](ctx context.Context, client llmclient.LLMClient, call Call) (T, json.RawMessage, error) {
	var zero T
	prompt, err := call.Spec.Render()
	if err != nil {
		return zero, nil, err
	}
	ctx = llmclient.WithPhase(ctx, call.Stage)
	raw, err := client.GenerateJSON(ctx, prompt, call.Input)
	if err != nil {
		return zero, nil, deckerr.Generation(call.Stage, err)
	}
	out, err := Decode[T](call.Stage, raw)
	return out, raw, err
}

// Decode parses raw model output into T and runs its Validate method when
// present.
func Decode[T any](stage string, raw json.RawMessage) (T, error) {
	var out T
	if err := jsonutil.UnmarshalRaw(raw, &out); err != nil {
		return out, deckerr.SchemaParse(stage, raw, fmt.Errorf("%s JSON invalid: %w", stage, err))
	}
	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, deckerr.SchemaParse(stage, raw, err)
		}
	}
	return out, nil
}
