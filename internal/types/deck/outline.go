package deck

import (
	"fmt"
	"strings"
)

// SectionKind is the narrative role of a section.
type SectionKind string

const (
	KindTitle      SectionKind = "title"
	KindAgenda     SectionKind = "agenda"
	KindChapter    SectionKind = "chapter"
	KindConclusion SectionKind = "conclusion"
	KindQA         SectionKind = "qa"
)

// ParseSectionKind normalizes model output such as "Q&A" or "Chapter".
func ParseSectionKind(s string) (SectionKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "title", "title_slide", "cover":
		return KindTitle, true
	case "agenda", "overview", "table_of_contents":
		return KindAgenda, true
	case "chapter", "content", "body":
		return KindChapter, true
	case "conclusion", "summary", "closing":
		return KindConclusion, true
	case "qa", "q&a", "q_and_a", "questions":
		return KindQA, true
	}
	return "", false
}

// Outline is accepted once per run and never mutated afterwards.
type Outline struct {
	Title          string    `json:"title" prompt_desc:"Presentation title."`
	TargetAudience string    `json:"target_audience" prompt_desc:"Who the deck is for."`
	OverallMessage string    `json:"overall_message" prompt_desc:"One sentence takeaway of the whole deck."`
	Sections       []Section `json:"sections" prompt_type:"[]Section" prompt_desc:"Ordered sections; index must be contiguous from 0."`
}

type Section struct {
	Index           int         `json:"index"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	KeyPoints       []string    `json:"key_points"`
	EstimatedSlides int         `json:"estimated_slides"`
	Kind            SectionKind `json:"section_type"`
}

// Validate checks the structural invariants every downstream stage relies on.
func (o *Outline) Validate() error {
	if strings.TrimSpace(o.Title) == "" {
		return fmt.Errorf("outline title is empty")
	}
	if len(o.Sections) == 0 {
		return fmt.Errorf("outline has no sections")
	}
	for i := range o.Sections {
		s := &o.Sections[i]
		if s.Index != i {
			return fmt.Errorf("section %d has index %d; indices must be contiguous from 0", i, s.Index)
		}
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("section %d has no title", i)
		}
		kind, ok := ParseSectionKind(string(s.Kind))
		if !ok {
			return fmt.Errorf("section %d has unknown section_type %q", i, s.Kind)
		}
		s.Kind = kind
		if s.EstimatedSlides < 1 {
			s.EstimatedSlides = 1
		}
	}
	return nil
}

// TotalEstimatedSlides sums EstimatedSlides over all sections.
func (o Outline) TotalEstimatedSlides() int {
	n := 0
	for _, s := range o.Sections {
		n += s.EstimatedSlides
	}
	return n
}
