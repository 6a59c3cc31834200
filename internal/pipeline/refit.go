package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"deckflow/internal/deckerr"
	"deckflow/internal/fit"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/llmtool"
	"deckflow/internal/types/deck"
)

const StageRefit = "refit"

var refitPromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Shorten slide text so every listed placeholder fits its size budget.",
	Background: "input.slide is the whole slide and input.mapping its current placeholder values; each correction names a placeholder, its current content and its exact character and line budget.",
	OutputFields: []llmtool.PromptField{
		{Name: "placeholders", Type: "map[string]string|[]string", Required: true, Description: "Placeholder index (as string) to the rewritten text, or list of bullets when the correction says list."},
	},
	Constraints: []string{
		"Return a value for every corrected placeholder and for no other.",
		"Stay strictly within max_chars for text and max_lines for lists.",
		"Keep lists as lists and text as text.",
		"Do not repeat in a corrected placeholder what another placeholder of input.mapping already says.",
	},
	Rules: []string{
		"Keep the meaning and the most important facts; drop examples and qualifiers first.",
	},
	OutputFormat: "JSON only.",
}, llmtool.PresetStrictJSON(), llmtool.PresetNoInvent())

type refitOut struct {
	Placeholders map[string]deck.RawValue `json:"placeholders"`
}

// refitter builds the fit.Regenerate callback for one slide. Every call
// resubmits the whole slide and the current mapping alongside the corrections.
func refitter(client llmclient.LLMClient, lang string, slide deck.SlideContent) fit.Regenerate {
	spec := refitPromptSpec.WithLanguage(lang)
	return func(ctx context.Context, cur deck.ContentMapping, corrections []fit.Correction, attempt int) (deck.ContentMapping, error) {
		instructions := make([]string, len(corrections))
		for i, c := range corrections {
			instructions[i] = c.Instruction()
		}
		input := map[string]any{
			"slide":        slide,
			"mapping":      cur.Values,
			"attempt":      attempt,
			"corrections":  corrections,
			"instructions": instructions,
		}
		out, raw, err := llmtool.Invoke[refitOut](ctx, client, llmtool.Call{Stage: StageRefit, Spec: spec, Input: input})
		if err != nil {
			return cur, err
		}
		next, err := applyRefit(cur, corrections, out.Placeholders)
		if err != nil {
			return cur, deckerr.SchemaParse(StageRefit, raw, err)
		}
		return next, nil
	}
}

// applyRefit replaces the corrected placeholders and leaves the rest as is.
func applyRefit(cur deck.ContentMapping, corrections []fit.Correction, values map[string]deck.RawValue) (deck.ContentMapping, error) {
	byIndex := make(map[int]deck.RawValue, len(values))
	for k, v := range values {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return cur, fmt.Errorf("placeholder key %q is not an index", k)
		}
		byIndex[idx] = v
	}
	next := cur.Clone()
	for _, c := range corrections {
		v, ok := byIndex[c.Placeholder]
		if !ok {
			return cur, fmt.Errorf("placeholder %d missing from rewrite", c.Placeholder)
		}
		role := cur.Values[c.Placeholder].Role
		switch {
		case c.List && v.IsList:
			next.Values[c.Placeholder] = deck.List(role, v.Items)
		case c.List:
			next.Values[c.Placeholder] = deck.List(role, splitLines(v.Text))
		case v.IsList:
			next.Values[c.Placeholder] = deck.Text(role, strings.Join(v.Items, " "))
		default:
			next.Values[c.Placeholder] = deck.Text(role, v.Text)
		}
	}
	return next, nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-•*"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
