package pipeline

import (
	"context"

	"deckflow/internal/candidate"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/llmtool"
	"deckflow/internal/logger"
	"deckflow/internal/retry"
	"deckflow/internal/scoring"
	"deckflow/internal/types/deck"
)

const (
	StageOutline = "outline"
	AgentOutline = "outline_agent"
)

var outlinePromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Plan the section structure of a presentation.",
	Background: "A Section is {index:int, title:string, description:string, key_points:[]string, estimated_slides:int, section_type:\"title\"|\"agenda\"|\"chapter\"|\"conclusion\"|\"qa\"}.",
	OutputFields: llmtool.MustFieldsFromStruct(deck.Outline{}),
	Constraints: []string{
		"Section indexes start at 0 and increase by 1.",
		"The sum of estimated_slides must suit input.request.duration_minutes at roughly one slide per minute.",
		"Start with a title section and end with a conclusion or qa section.",
	},
	Rules: []string{
		"Give every chapter section 2 to 5 key points.",
		"Keep section titles under 8 words.",
		"Tailor depth and vocabulary to input.request.audience and input.request.purpose.",
	},
	OutputFormat: "JSON only.",
}, llmtool.PresetStrictJSON(), llmtool.PresetAudience(), llmtool.PresetNoInvent())

// OutlineStage produces the single outline of a run. It runs Candidates
// generations concurrently and keeps the highest scoring valid one.
type OutlineStage struct {
	LLM        llmclient.LLMClient
	Candidates int
	Retries    int
	Weights    scoring.OutlineWeights
	Drafts     candidate.Recorder
	Log        *logger.Logger
}

// Run returns NoValidCandidateError when every candidate failed validation
// or generation after its retries.
func (s *OutlineStage) Run(ctx context.Context, sessionID string, req deck.Request) (deck.Outline, error) {
	spec := outlinePromptSpec.WithLanguage(req.LanguageOrDefault())
	log := logger.OrNop(s.Log).With("session", sessionID, "stage", StageOutline)

	task := func(ctx context.Context, n int) (deck.Outline, error) {
		input := map[string]any{"request": req, "candidate": n}
		return retry.Do(ctx, max(1, s.Retries), func(ctx context.Context, attempt int) (deck.Outline, error) {
			out, _, err := llmtool.Invoke[deck.Outline](ctx, s.LLM, llmtool.Call{Stage: StageOutline, Spec: spec, Input: input})
			return out, err
		}, retry.Options{OnRetry: func(attempt int, err error) {
			log.Debug("outline retry", "candidate", n, "attempt", attempt, "error", err)
		}})
	}

	weights := s.Weights
	if weights == (scoring.OutlineWeights{}) {
		weights = scoring.DefaultOutlineWeights()
	}
	out, err := candidate.Generate(ctx, task, candidate.Options[deck.Outline]{
		K:         s.Candidates,
		Stage:     StageOutline,
		Agent:     AgentOutline,
		Score:     weights.Outline(),
		SessionID: sessionID,
		Drafts:    s.Drafts,
		Log:       s.Log,
	})
	if err != nil {
		return deck.Outline{}, err
	}
	log.Info("outline accepted", "title", out.Title, "sections", len(out.Sections), "slides", out.TotalEstimatedSlides())
	return out, nil
}
