// Package scoring holds the deterministic heuristics used to rank
// candidates. Weights are configuration; every score lies in [0,1].
package scoring

import (
	"math"
	"strings"

	"deckflow/internal/types/deck"
)

type OutlineWeights struct {
	Completeness float64 `json:"completeness" yaml:"completeness"`
	Structure    float64 `json:"structure" yaml:"structure"`
	Balance      float64 `json:"balance" yaml:"balance"`
}

func DefaultOutlineWeights() OutlineWeights {
	return OutlineWeights{Completeness: 0.4, Structure: 0.4, Balance: 0.2}
}

// Outline returns a scorer for outline candidates.
func (w OutlineWeights) Outline() func(deck.Outline) float64 {
	return func(o deck.Outline) float64 {
		return w.Completeness*OutlineCompleteness(o) +
			w.Structure*OutlineStructure(o) +
			w.Balance*OutlineBalance(o)
	}
}

// OutlineCompleteness credits a title, sections, an audience and an overall
// message equally.
func OutlineCompleteness(o deck.Outline) float64 {
	score := 0.0
	for _, present := range []bool{
		strings.TrimSpace(o.Title) != "",
		len(o.Sections) > 0,
		strings.TrimSpace(o.TargetAudience) != "",
		strings.TrimSpace(o.OverallMessage) != "",
	} {
		if present {
			score += 0.25
		}
	}
	return score
}

// OutlineStructure is the mean per-section share of title, description and
// key points present.
func OutlineStructure(o deck.Outline) float64 {
	if len(o.Sections) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range o.Sections {
		if strings.TrimSpace(s.Title) != "" {
			total += 1.0 / 3
		}
		if strings.TrimSpace(s.Description) != "" {
			total += 1.0 / 3
		}
		if len(s.KeyPoints) > 0 {
			total += 1.0 / 3
		}
	}
	return total / float64(len(o.Sections))
}

// OutlineBalance is 1 minus the coefficient of variation of estimated slide
// counts. Fewer than two sections score a neutral 0.5.
func OutlineBalance(o deck.Outline) float64 {
	n := len(o.Sections)
	if n < 2 {
		return 0.5
	}
	mean := 0.0
	for _, s := range o.Sections {
		mean += float64(s.EstimatedSlides)
	}
	mean /= float64(n)
	if mean <= 0 {
		return 0
	}
	variance := 0.0
	for _, s := range o.Sections {
		d := float64(s.EstimatedSlides) - mean
		variance += d * d
	}
	cv := math.Sqrt(variance/float64(n)) / mean
	return clamp01(1 - cv)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
