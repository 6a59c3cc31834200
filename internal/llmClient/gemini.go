package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

const geminiSystemPrompt = "You are a presentation generation engine. Reply with a single JSON object and nothing else."

// GeminiClient calls the Gemini API in JSON mode.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, NewPermanentError(errors.New("gemini: api key is empty"))
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.5-flash"
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		genai.Text(composePrompt(prompt, input)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(geminiSystemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
			return nil, NewPermanentError(err)
		}
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrInvalidJSON
	}
	// blocked answers come back without text; asking again rarely helps
	if c := resp.Candidates[0]; c.FinishReason == genai.FinishReasonSafety || c.FinishReason == genai.FinishReasonProhibitedContent {
		return nil, NewPermanentError(fmt.Errorf("gemini: answer blocked (%s)", c.FinishReason))
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(text), nil
}
