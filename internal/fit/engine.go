package fit

import (
	"context"
	"fmt"
	"strings"

	"deckflow/internal/logger"
	"deckflow/internal/types/deck"
)

// Correction tells the generator how far one placeholder must shrink.
type Correction struct {
	Placeholder  int    `json:"placeholder"`
	Name         string `json:"name"`
	Current      string `json:"current"`
	List         bool   `json:"list"`
	CharsPerLine int    `json:"chars_per_line"`
	MaxLines     int    `json:"max_lines"`
	MaxChars     int    `json:"max_chars"`
}

// Instruction renders the correction as a single prompt line.
func (c Correction) Instruction() string {
	if c.List {
		return fmt.Sprintf("Placeholder %q (index %d) overflows: rewrite the list so it uses at most %d lines of %d characters; current content: %q",
			c.Name, c.Placeholder, c.MaxLines, c.CharsPerLine, c.Current)
	}
	return fmt.Sprintf("Placeholder %q (index %d) overflows: rewrite it in at most %d characters (%d lines of %d); current content: %q",
		c.Name, c.Placeholder, c.MaxChars, c.MaxLines, c.CharsPerLine, c.Current)
}

// Regenerate rewrites the slide's textual values under the given budgets and
// returns a fresh mapping for the same layout.
type Regenerate func(ctx context.Context, current deck.ContentMapping, corrections []Correction, attempt int) (deck.ContentMapping, error)

// Engine runs the correction loop.
type Engine struct {
	Fonts      Fonts
	MaxRetries int
	Log        *logger.Logger
}

// Outcome is the accepted mapping after Enforce.
type Outcome struct {
	Mapping deck.ContentMapping
	// Degraded is set when content had to be truncated.
	Degraded bool
	// Regenerations counts successful regenerate calls.
	Regenerations int
	// Truncated lists placeholder indices cut to budget.
	Truncated []int
}

// CheckMapping estimates every mapped placeholder of the layout, ordered by
// placeholder index.
func CheckMapping(l deck.Layout, m deck.ContentMapping, fonts Fonts) []Result {
	out := make([]Result, 0, len(m.Values))
	for _, idx := range m.Indices() {
		p, ok := l.Placeholder(idx)
		if !ok {
			continue
		}
		out = append(out, Check(m.Values[idx], p, fonts))
	}
	return out
}

// Overflowing filters results to those that do not fit.
func Overflowing(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Fits {
			out = append(out, r)
		}
	}
	return out
}

// Enforce regenerates up to MaxRetries times while any placeholder
// overflows, then truncates what still overflows and marks the outcome
// degraded. It never fails.
func (e Engine) Enforce(ctx context.Context, l deck.Layout, m deck.ContentMapping, regen Regenerate) Outcome {
	log := logger.OrNop(e.Log).With("slide", m.SlideIndex, "layout", l.Index)
	cur := m.Clone()
	out := Outcome{}

	for attempt := 0; ; attempt++ {
		over := Overflowing(CheckMapping(l, cur, e.Fonts))
		if len(over) == 0 {
			out.Mapping = cur
			return out
		}
		if attempt >= e.MaxRetries || regen == nil || ctx.Err() != nil {
			break
		}
		corrections := make([]Correction, 0, len(over))
		for _, r := range over {
			log.Debug("placeholder overflow", "attempt", attempt+1, "error", r.Err())
			corrections = append(corrections, correctionFor(r, cur.Values[r.Placeholder]))
		}
		next, err := regen(ctx, cur.Clone(), corrections, attempt+1)
		if err == nil {
			err = next.Validate(l)
		}
		if err != nil {
			log.Warn("fit regeneration failed", "attempt", attempt+1, "error", err)
			continue
		}
		out.Regenerations++
		cur = next.Clone()
	}

	for _, r := range Overflowing(CheckMapping(l, cur, e.Fonts)) {
		p, _ := l.Placeholder(r.Placeholder)
		cur.Values[r.Placeholder] = Truncate(cur.Values[r.Placeholder], p, e.Fonts)
		out.Truncated = append(out.Truncated, r.Placeholder)
	}
	out.Degraded = true
	out.Mapping = cur
	log.Info("slide degraded by truncation", "placeholders", out.Truncated)
	return out
}

func correctionFor(r Result, v deck.MappedValue) Correction {
	current := v.Text
	if r.List {
		current = strings.Join(v.Items, "\n")
	}
	return Correction{
		Placeholder:  r.Placeholder,
		Name:         r.Name,
		Current:      current,
		List:         r.List,
		CharsPerLine: r.CharsPerLine,
		MaxLines:     r.MaxLines,
		MaxChars:     r.MaxChars,
	}
}
