package layout

import (
	"context"
	"fmt"

	"deckflow/internal/deckerr"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/llmtool"
	"deckflow/internal/logger"
	"deckflow/internal/retry"
	"deckflow/internal/types/deck"
)

const StageLayout = "layout"

var selectPromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Choose one slide layout for every slide of a presentation section.",
	Background: "Each slide lists the layout indexes it may use; layouts are described by class and placeholders.",
	OutputFields: []llmtool.PromptField{
		{Name: "layout_indexes", Type: "[]int", Required: true, Description: "One layout index per slide, in slide order."},
	},
	Constraints: []string{
		"Return exactly one index per input slide, in the same order.",
		"Every index must be one of that slide's allowed_layouts.",
	},
	Rules: []string{
		"Prefer visual layouts for slides that request images or diagrams.",
		"Prefer layouts with enough body placeholders for long bullet lists.",
		"Vary layouts across consecutive slides when several fit equally well.",
	},
	OutputFormat: "JSON only.",
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetNoInvent())

type selectOut struct {
	LayoutIndexes []int `json:"layout_indexes"`
}

type slideBrief struct {
	SlideIndex     int      `json:"slide_index"`
	Title          string   `json:"title"`
	BodyChars      int      `json:"body_chars"`
	BodyItems      int      `json:"body_items"`
	Images         int      `json:"images"`
	Diagrams       int      `json:"diagrams"`
	AllowedLayouts []int    `json:"allowed_layouts"`
	Keywords       []string `json:"keywords,omitempty"`
}

type placeholderBrief struct {
	Index int                  `json:"index"`
	Type  deck.PlaceholderType `json:"type"`
	Name  string               `json:"name"`
}

type layoutBrief struct {
	Index        int                `json:"index"`
	Name         string             `json:"name"`
	Class        Class              `json:"class"`
	Placeholders []placeholderBrief `json:"placeholders"`
}

// Selector picks a layout per slide through the generation service.
type Selector struct {
	LLM     llmclient.LLMClient
	Retries int
	Log     *logger.Logger
}

// Select returns one layout index per slide, in slide order. Each index is
// drawn from the slide's allowed candidates. When the service keeps failing
// it falls back to Heuristic; only context cancellation is returned.
func (s *Selector) Select(ctx context.Context, sec deck.Section, slides []deck.SlideContent, cat deck.Catalog) ([]int, error) {
	if len(slides) == 0 {
		return []int{}, nil
	}
	if len(cat.Layouts) == 0 {
		return nil, fmt.Errorf("catalog %s has no layouts", cat.TemplateRef)
	}
	allowed := make([][]int, len(slides))
	offered := map[int]bool{}
	briefs := make([]slideBrief, len(slides))
	for i, sl := range slides {
		allowed[i] = Candidates(cat, sec.Kind, i)
		for _, idx := range allowed[i] {
			offered[idx] = true
		}
		briefs[i] = slideBrief{
			SlideIndex:     sl.SlideIndex,
			Title:          sl.Title,
			BodyChars:      sl.Body.Len(),
			Images:         len(sl.Images),
			Diagrams:       len(sl.Diagrams),
			AllowedLayouts: allowed[i],
			Keywords:       sl.Keywords,
		}
		if sl.Body.IsList() {
			briefs[i].BodyItems = len(sl.Body.Items)
		}
	}
	var layouts []layoutBrief
	for _, l := range cat.Layouts {
		if !offered[l.Index] {
			continue
		}
		lb := layoutBrief{Index: l.Index, Name: l.Name, Class: Classify(l)}
		for _, p := range UsablePlaceholders(l) {
			lb.Placeholders = append(lb.Placeholders, placeholderBrief{Index: p.Index, Type: p.Type, Name: p.Name})
		}
		layouts = append(layouts, lb)
	}
	input := map[string]any{
		"section": map[string]any{"title": sec.Title, "section_type": sec.Kind},
		"slides":  briefs,
		"layouts": layouts,
	}

	log := logger.OrNop(s.Log).With("section", sec.Index)
	out, err := retry.Do(ctx, max(1, s.Retries), func(ctx context.Context, attempt int) ([]int, error) {
		res, raw, err := llmtool.Invoke[selectOut](ctx, s.LLM, llmtool.Call{Stage: StageLayout, Spec: selectPromptSpec, Input: input})
		if err != nil {
			return nil, err
		}
		if err := checkSelection(res.LayoutIndexes, allowed); err != nil {
			return nil, deckerr.SchemaParse(StageLayout, raw, err)
		}
		return res.LayoutIndexes, nil
	}, retry.Options{OnRetry: func(attempt int, err error) {
		log.Debug("layout selection retry", "attempt", attempt, "error", err)
	}})
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	log.Warn("layout selection fell back to heuristic", "error", err)
	return Heuristic(cat, slides, allowed), nil
}

func checkSelection(got []int, allowed [][]int) error {
	if len(got) != len(allowed) {
		return fmt.Errorf("got %d layout indexes for %d slides", len(got), len(allowed))
	}
	for i, idx := range got {
		ok := false
		for _, a := range allowed[i] {
			if a == idx {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("slide %d: layout %d is not in %v", i, idx, allowed[i])
		}
	}
	return nil
}

// Heuristic picks, per slide, a visual layout when assets are requested, a
// content layout when there is a body, and otherwise the first allowed one.
func Heuristic(cat deck.Catalog, slides []deck.SlideContent, allowed [][]int) []int {
	out := make([]int, len(slides))
	for i, sl := range slides {
		want := ClassContent
		switch {
		case len(sl.Images)+len(sl.Diagrams) > 0:
			want = ClassVisual
		case sl.Body.IsEmpty():
			want = ClassTitleOnly
		}
		out[i] = allowed[i][0]
		for _, idx := range allowed[i] {
			if l, ok := cat.Layout(idx); ok && Classify(l) == want {
				out[i] = idx
				break
			}
		}
	}
	return out
}
