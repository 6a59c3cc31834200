package audit

import (
	"context"
	"encoding/json"

	"deckflow/internal/llm"
)

const StagePrompt = "prompt"

type promptRecord struct {
	Phase    string          `json:"phase"`
	Prompt   string          `json:"prompt,omitempty"`
	Input    any             `json:"input,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// PromptHook archives every prompt and raw response of a session as drafts
// of stage "prompt". Media payloads in the input are redacted.
func (l *Log) PromptHook(sessionID string) llm.PromptHook {
	return &promptHook{log: l, sessionID: sessionID}
}

type promptHook struct {
	log       *Log
	sessionID string
}

func (h *promptHook) Before(_ context.Context, phase, prompt string, input any) {
	var generic any
	if b, err := json.Marshal(input); err == nil {
		_ = json.Unmarshal(b, &generic)
	}
	h.log.Append(h.sessionID, phase, StagePrompt, promptRecord{Phase: phase, Prompt: prompt, Input: llm.RedactMedia(generic)})
}

func (h *promptHook) After(_ context.Context, phase string, raw json.RawMessage, err error) {
	rec := promptRecord{Phase: phase}
	if json.Valid(raw) {
		rec.Response = raw
	} else if len(raw) > 0 {
		rec.Response, _ = json.Marshal(string(raw))
	}
	if err != nil {
		rec.Error = err.Error()
	}
	h.log.Append(h.sessionID, phase, StagePrompt, rec)
}
