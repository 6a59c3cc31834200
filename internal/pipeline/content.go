package pipeline

import (
	"context"
	"fmt"
	"strings"

	"deckflow/internal/candidate"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/llmtool"
	"deckflow/internal/logger"
	"deckflow/internal/retry"
	"deckflow/internal/scoring"
	"deckflow/internal/types/deck"
)

const (
	StageContent = "content"
	AgentContent = "content_agent"
)

type slideDraft struct {
	Title    string                `json:"title" prompt_desc:"Slide title, at most 8 words."`
	Content  deck.Body             `json:"content" prompt_type:"string|[]string" prompt_desc:"Body text, or a list of bullet strings."`
	Notes    string                `json:"notes" prompt:"optional" prompt_desc:"Speaker notes."`
	Images   []deck.ImageRequest   `json:"images_needed" prompt:"optional" prompt_type:"[]{description,query}"`
	Diagrams []deck.DiagramRequest `json:"diagrams_needed" prompt:"optional" prompt_type:"[]{description,data,relations}"`
	Keywords []string              `json:"keywords" prompt:"optional"`
}

type contentOut struct {
	Slides []slideDraft `json:"slides" prompt_type:"[]Slide" prompt_desc:"Slides of this section in presentation order."`
}

// maxSlidesFactor bounds how far a section may overshoot its estimate.
const maxSlidesFactor = 2

func (c *contentOut) Validate() error {
	if len(c.Slides) == 0 {
		return fmt.Errorf("section has no slides")
	}
	for i, s := range c.Slides {
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("slide %d has no title", i)
		}
		for j, d := range s.Diagrams {
			if strings.TrimSpace(d.Description) == "" {
				return fmt.Errorf("slide %d diagram %d has no description", i, j)
			}
		}
		for j, img := range s.Images {
			if strings.TrimSpace(img.Description) == "" && strings.TrimSpace(img.Query) == "" {
				return fmt.Errorf("slide %d image %d has neither description nor query", i, j)
			}
		}
	}
	return nil
}

var contentPromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose: "Write the slides of one presentation section.",
	Background: "A Slide is {title, content, notes, images_needed:[{description, query}], " +
		"diagrams_needed:[{description, data, relations}], keywords}. The deck outline is given for context.",
	OutputFields: llmtool.MustFieldsFromStruct(contentOut{}),
	Constraints: []string{
		"Write about input.section.estimated_slides slides.",
		"Bullets are at most 12 words each; at most 6 bullets per slide.",
		"Request a diagram only when the slide explains a process, structure, timeline or numbers.",
	},
	Rules: []string{
		"Cover every key point of input.section.",
		"A chapter section opens with a slide whose title is the chapter title.",
		"Use keywords that also appear in the section title or key points.",
	},
	OutputFormat: "JSON only.",
}, llmtool.PresetStrictJSON(), llmtool.PresetAudience(), llmtool.PresetNoInvent())

// ContentStage writes the slides of one section.
type ContentStage struct {
	LLM        llmclient.LLMClient
	Candidates int
	Retries    int
	Weights    scoring.ContentWeights
	Drafts     candidate.Recorder
	Log        *logger.Logger
}

// Run returns the section's slides with SectionIndex and SlideIndex set.
func (s *ContentStage) Run(ctx context.Context, sessionID string, req deck.Request, outline deck.Outline, sec deck.Section) ([]deck.SlideContent, error) {
	spec := contentPromptSpec.WithLanguage(req.LanguageOrDefault())
	log := logger.OrNop(s.Log).With("session", sessionID, "stage", StageContent, "section", sec.Index)
	input := map[string]any{
		"request": req,
		"outline": map[string]any{"title": outline.Title, "overall_message": outline.OverallMessage, "sections": len(outline.Sections)},
		"section": sec,
	}
	limit := max(sec.EstimatedSlides, 1) * maxSlidesFactor

	task := func(ctx context.Context, n int) ([]deck.SlideContent, error) {
		return retry.Do(ctx, max(1, s.Retries), func(ctx context.Context, attempt int) ([]deck.SlideContent, error) {
			out, _, err := llmtool.Invoke[contentOut](ctx, s.LLM, llmtool.Call{Stage: StageContent, Spec: spec, Input: input})
			if err != nil {
				return nil, err
			}
			return toSlides(sec.Index, out.Slides, limit), nil
		}, retry.Options{OnRetry: func(attempt int, err error) {
			log.Debug("content retry", "candidate", n, "attempt", attempt, "error", err)
		}})
	}

	weights := s.Weights
	if weights == (scoring.ContentWeights{}) {
		weights = scoring.DefaultContentWeights()
	}
	slides, err := candidate.Generate(ctx, task, candidate.Options[[]deck.SlideContent]{
		K:         s.Candidates,
		Stage:     StageContent,
		Agent:     AgentContent,
		Score:     weights.Section(sec),
		SessionID: sessionID,
		Drafts:    s.Drafts,
		Log:       s.Log,
	})
	if err != nil {
		return nil, err
	}
	log.Debug("section content accepted", "slides", len(slides))
	return slides, nil
}

func toSlides(section int, drafts []slideDraft, limit int) []deck.SlideContent {
	if len(drafts) > limit {
		drafts = drafts[:limit]
	}
	out := make([]deck.SlideContent, len(drafts))
	for i, d := range drafts {
		out[i] = deck.SlideContent{
			SectionIndex: section,
			SlideIndex:   i,
			Title:        strings.TrimSpace(d.Title),
			Body:         d.Content,
			Notes:        d.Notes,
			Images:       d.Images,
			Diagrams:     d.Diagrams,
			Keywords:     d.Keywords,
		}
	}
	return out
}
