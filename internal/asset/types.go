// Package asset produces the diagram and image files that visual
// placeholders point at.
package asset

import (
	"context"
	"strings"
	"unicode"

	"deckflow/internal/types/deck"
)

// Renderer turns diagram markup into a raster file at outputPath. Invalid
// markup fails with *deckerr.RenderError.
type Renderer interface {
	Render(ctx context.Context, markup, outputPath string) error
}

// SizedRenderer renders at an explicit pixel size.
type SizedRenderer interface {
	RenderSized(ctx context.Context, markup, outputPath string, width, height int) error
}

// SyntaxGuide describes the markup a renderer expects for a diagram type.
type SyntaxGuide interface {
	Syntax(diagramType string) string
}

// DefaultDiagramTypes is the fallback catalog, in preference order.
var DefaultDiagramTypes = []string{"flowchart", "hierarchy", "timeline", "cycle", "pie", "bar", "line"}

// TypeClaims tracks which diagram types the deck has already rendered.
type TypeClaims interface {
	UsedDiagramTypes(slot deck.AssetSlot) map[string]bool
	RecordDiagramType(slot deck.AssetSlot, typ string)
}

// hintVocab is checked in order; the first matching entry wins.
var hintVocab = []struct {
	words []string
	types []string
}{
	{[]string{"timeline", "history", "roadmap", "milestone"}, []string{"timeline"}},
	{[]string{"hierarchy", "organization", "org chart", "tree", "taxonomy"}, []string{"hierarchy"}},
	{[]string{"cycle", "loop", "lifecycle", "iteration"}, []string{"cycle"}},
	{[]string{"percentage", "share", "proportion", "breakdown", "pie"}, []string{"pie", "bar"}},
	{[]string{"trend", "over time", "growth", "line"}, []string{"line", "bar"}},
	{[]string{"chart", "graph", "bar", "histogram", "scatter", "comparison"}, []string{"bar", "line", "pie"}},
	{[]string{"flow", "process", "step", "pipeline", "sequence", "state", "workflow"}, []string{"flowchart"}},
}

// Hint returns the diagram type the request's wording points at, restricted
// to available. It falls back to the first available type.
func Hint(req deck.DiagramRequest, available []string) string {
	if len(available) == 0 {
		return ""
	}
	avail := map[string]bool{}
	for _, t := range available {
		avail[t] = true
	}
	text := strings.ToLower(req.Description + " " + req.Data + " " + req.Relations)
	tokens := strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, v := range hintVocab {
		for _, w := range v.words {
			if !mentions(text, tokens, w) {
				continue
			}
			for _, t := range v.types {
				if avail[t] {
					return t
				}
			}
		}
	}
	return available[0]
}

// mentions matches phrases as substrings and single words as token prefixes,
// so "milestones" hits "milestone" but "pipeline" does not hit "line".
func mentions(text string, tokens []string, w string) bool {
	if strings.Contains(w, " ") {
		return strings.Contains(text, w)
	}
	for _, tok := range tokens {
		if strings.HasPrefix(tok, w) {
			return true
		}
	}
	return false
}

// Available is the catalog minus types used elsewhere in the deck. When that
// leaves nothing, the full catalog is offered again.
func Available(catalog []string, used map[string]bool) []string {
	var out []string
	for _, t := range catalog {
		if !used[t] {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), catalog...)
	}
	return out
}

// Order returns the types to try for req. The first is hinted from the
// unused types, or from the whole catalog once every type is used; it is
// always attempted. Alternates are the remaining unused types in catalog
// order.
func Order(req deck.DiagramRequest, catalog []string, used map[string]bool) []string {
	first := Hint(req, Available(catalog, used))
	out := []string{}
	if first != "" {
		out = append(out, first)
	}
	for _, t := range catalog {
		if t != first && !used[t] {
			out = append(out, t)
		}
	}
	return out
}
