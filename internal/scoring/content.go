package scoring

import (
	"strings"
	"unicode/utf8"

	"deckflow/internal/types/deck"
)

type ContentWeights struct {
	Clarity   float64 `json:"clarity" yaml:"clarity"`
	Relevance float64 `json:"relevance" yaml:"relevance"`
	Visual    float64 `json:"visual" yaml:"visual"`
	Depth     float64 `json:"depth" yaml:"depth"`
}

func DefaultContentWeights() ContentWeights {
	return ContentWeights{Clarity: 0.3, Relevance: 0.3, Visual: 0.2, Depth: 0.2}
}

// Slide scores one slide against its section.
func (w ContentWeights) Slide(s deck.SlideContent, sec deck.Section) float64 {
	return w.Clarity*Clarity(s) +
		w.Relevance*Relevance(s, sec) +
		w.Visual*VisualSupport(s) +
		w.Depth*Depth(s)
}

// Section returns a scorer for a section's slide set: the mean slide score.
func (w ContentWeights) Section(sec deck.Section) func([]deck.SlideContent) float64 {
	return func(slides []deck.SlideContent) float64 {
		if len(slides) == 0 {
			return 0
		}
		total := 0.0
		for _, s := range slides {
			total += w.Slide(s, sec)
		}
		return total / float64(len(slides))
	}
}

func bodyLines(b deck.Body) int {
	if b.IsList() {
		return len(b.Items)
	}
	if b.Text == "" {
		return 0
	}
	return strings.Count(b.Text, "\n") + 1
}

// Clarity rewards a mid-length title, a body of three to seven lines or
// 100-300 characters, and speaker notes.
func Clarity(s deck.SlideContent) float64 {
	score := 0.0
	if n := utf8.RuneCountInString(s.Title); n > 0 {
		switch {
		case n >= 3 && n <= 10:
			score += 0.7
		case n > 10 && n <= 70:
			score += 1.0
		default:
			score += 0.4
		}
	}
	if !s.Body.IsEmpty() {
		n, lines := s.Body.Len(), bodyLines(s.Body)
		switch {
		case (lines >= 3 && lines <= 7) || (n >= 100 && n <= 300):
			score += 1.0
		case (lines >= 1 && lines < 3) || (n >= 50 && n < 100),
			(lines > 7 && lines <= 10) || (n > 300 && n <= 500):
			score += 0.7
		default:
			score += 0.3
		}
	}
	if strings.TrimSpace(s.Notes) != "" {
		score += 1.0
	}
	return score / 3
}

// Relevance measures word overlap with the section title, description and
// key points.
func Relevance(s deck.SlideContent, sec deck.Section) float64 {
	title := strings.ToLower(s.Title)
	body := strings.ToLower(s.Body.String())
	if title == "" && body == "" {
		return 0.3
	}
	secTitle := strings.ToLower(sec.Title)
	secWords := strings.Fields(secTitle)

	titleRel := 0.0
	switch {
	case secTitle != "" && strings.Contains(title, secTitle), containsAny(title, secWords):
		titleRel = 1
	case len(secWords) > 0:
		matches := 0
		for _, tw := range strings.Fields(title) {
			for _, sw := range secWords {
				if strings.Contains(tw, sw) || strings.Contains(sw, tw) {
					matches++
					break
				}
			}
		}
		titleRel = clamp01(float64(matches) / float64(len(secWords)))
	}

	bodyRel := 0.0
	if containsAny(body, strings.Fields(strings.ToLower(sec.Description))) {
		bodyRel += 0.5
	}
	if len(sec.KeyPoints) > 0 {
		hits := 0
		for _, kp := range sec.KeyPoints {
			if containsAny(body, strings.Fields(strings.ToLower(kp))) {
				hits++
			}
		}
		bodyRel += min(0.5, float64(hits)/float64(len(sec.KeyPoints)))
	}
	return (titleRel + bodyRel) / 2
}

// VisualSupport prefers one or two images and a single diagram.
func VisualSupport(s deck.SlideContent) float64 {
	score := 0.0
	switch n := len(s.Images); {
	case n >= 1 && n <= 2:
		score += 1
	case n > 2:
		score += 0.5
	}
	switch n := len(s.Diagrams); {
	case n == 1:
		score += 1
	case n > 1:
		score += 0.5
	}
	if len(s.Images) == 0 && len(s.Diagrams) == 0 {
		score += 0.5
	}
	return score / 2
}

// Depth rewards substantive but slide-sized bodies.
func Depth(s deck.SlideContent) float64 {
	if s.Body.IsEmpty() {
		return 0
	}
	n := s.Body.Len()
	score := 0.0
	switch {
	case n < 50:
		score += 0.2
	case n < 150:
		score += 0.5
	case n < 300:
		score += 0.8
	default:
		score += 0.6
	}
	if s.Body.IsList() {
		if k := len(s.Body.Items); k >= 3 && k <= 7 {
			score += 0.2
		} else {
			score += 0.1
		}
	} else {
		text := s.Body.Text
		sentences := strings.Count(text, ". ") + strings.Count(text, "! ") + strings.Count(text, "? ") + 1
		if sentences > 1 {
			if sentences <= 5 {
				score += 0.2
			} else {
				score += 0.1
			}
		}
	}
	return min(1, score)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}
