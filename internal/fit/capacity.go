// Package fit estimates how much text a placeholder can hold and drives the
// bounded correction loop that brings a slide within those budgets.
package fit

import (
	"math"
	"strings"
	"unicode/utf8"

	"deckflow/internal/deckerr"
	"deckflow/internal/types/deck"
)

const (
	charWidthFactor  = 0.5
	lineHeightString = 1.3
	lineHeightList   = 1.5
)

// Fonts resolves the font size used for a placeholder.
type Fonts struct {
	TitlePt float64 `json:"title_pt" yaml:"title_pt"`
	BodyPt  float64 `json:"body_pt" yaml:"body_pt"`
}

func DefaultFonts() Fonts { return Fonts{TitlePt: 24, BodyPt: 18} }

// For returns the title size when the placeholder name mentions "title".
func (f Fonts) For(p deck.Placeholder) float64 {
	d := DefaultFonts()
	title, body := f.TitlePt, f.BodyPt
	if title <= 0 {
		title = d.TitlePt
	}
	if body <= 0 {
		body = d.BodyPt
	}
	if strings.Contains(strings.ToLower(p.Name), "title") {
		return title
	}
	return body
}

// Capacity is the text budget of a placeholder at a given font size.
type Capacity struct {
	CharsPerLine int `json:"chars_per_line"`
	MaxLines     int `json:"max_lines"`
	MaxChars     int `json:"max_chars"`
}

// CapacityFor computes the budget. Lists use a taller line height and may
// report zero lines for a degenerate placeholder.
func CapacityFor(p deck.Placeholder, fontPt float64, list bool) Capacity {
	cpl := 1
	if fontPt > 0 {
		cpl = max(1, int(math.Floor(p.WidthPt/(fontPt*charWidthFactor))))
	}
	var lines int
	switch {
	case fontPt <= 0:
		lines = 1
	case list:
		lines = max(0, int(math.Floor(p.HeightPt/(fontPt*lineHeightList))))
	default:
		lines = max(1, int(math.Floor(p.HeightPt/(fontPt*lineHeightString))))
	}
	return Capacity{CharsPerLine: cpl, MaxLines: lines, MaxChars: cpl * lines}
}

// Result is the fit estimate for one placeholder.
type Result struct {
	Placeholder int    `json:"placeholder"`
	Name        string `json:"name"`
	List        bool   `json:"list"`
	Fits        bool   `json:"fits"`
	Capacity
	// Used is characters for strings and lines for lists.
	Used int `json:"used"`
	// Overflow is the text that would be cut; empty iff Fits.
	Overflow string `json:"overflow,omitempty"`
}

// Err reports the overflow as a FitOverflowError, or nil.
func (r Result) Err() error {
	if r.Fits {
		return nil
	}
	return &deckerr.FitOverflowError{Placeholder: r.Placeholder, MaxChars: r.MaxChars, MaxLines: r.MaxLines}
}

// Check estimates whether v fits p. Assets and empty values always fit.
func Check(v deck.MappedValue, p deck.Placeholder, fonts Fonts) Result {
	res := Result{Placeholder: p.Index, Name: p.Name, Fits: true}
	if !v.IsTextual() {
		return res
	}
	res.List = v.Kind == deck.ValueList
	res.Capacity = CapacityFor(p, fonts.For(p), res.List)

	if !res.List {
		n := utf8.RuneCountInString(v.Text)
		res.Used = n
		if n > res.MaxChars {
			res.Fits = false
			res.Overflow = string([]rune(v.Text)[res.MaxChars:])
		}
		return res
	}

	res.Used = listLines(v.Items, res.CharsPerLine)
	if res.Used > res.MaxLines {
		res.Fits = false
		_, cut := truncateList(v.Items, res.Capacity)
		res.Overflow = strings.Join(cut, "\n")
	}
	return res
}

// Truncate cuts a textual value down to the placeholder's budget.
func Truncate(v deck.MappedValue, p deck.Placeholder, fonts Fonts) deck.MappedValue {
	if !v.IsTextual() {
		return v
	}
	list := v.Kind == deck.ValueList
	c := CapacityFor(p, fonts.For(p), list)
	if !list {
		r := []rune(v.Text)
		if len(r) > c.MaxChars {
			v.Text = string(r[:c.MaxChars])
		}
		return v
	}
	kept, _ := truncateList(v.Items, c)
	v.Items = kept
	return v
}

func listLines(items []string, cpl int) int {
	total := 0
	for _, it := range items {
		total += ceilDiv(utf8.RuneCountInString(it), cpl)
	}
	return total
}

// truncateList keeps whole items while lines remain and cuts the item that
// crosses the budget. It returns the kept items and the removed text.
func truncateList(items []string, c Capacity) (kept, cut []string) {
	remaining := c.MaxLines
	kept = []string{}
	for i, it := range items {
		r := []rune(it)
		need := ceilDiv(len(r), c.CharsPerLine)
		if need <= remaining {
			kept = append(kept, it)
			remaining -= need
			continue
		}
		if keep := remaining * c.CharsPerLine; keep > 0 {
			kept = append(kept, string(r[:keep]))
			cut = append(cut, string(r[keep:]))
		} else {
			cut = append(cut, it)
		}
		cut = append(cut, items[i+1:]...)
		break
	}
	return kept, cut
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
