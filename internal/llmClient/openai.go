package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openAISystemPrompt = "You are a presentation generation engine. Reply with a single JSON object and nothing else."

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	cli   openai.Client
	model string
}

func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, NewPermanentError(fmt.Errorf("openai: api key is empty"))
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if u := strings.TrimSpace(baseURL); u != "" {
		opts = append(opts, option.WithBaseURL(u))
	}
	return &OpenAIClient{cli: openai.NewClient(opts...), model: model}, nil
}

func (o *OpenAIClient) Name() string { return "OpenAI:" + o.model }
func (o *OpenAIClient) Close() error { return nil }

func (o *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	resp, err := o.cli.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openAISystemPrompt),
			openai.UserMessage(composePrompt(prompt, input)),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
				return nil, NewPermanentError(err)
			}
		}
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}
