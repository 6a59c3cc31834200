package deck

// Flag marks a slide accepted in a degraded state.
type Flag string

const (
	FlagDegraded     Flag = "degraded"
	FlagDiagramError Flag = "diagram_error"
	FlagImageError   Flag = "image_error"
)

// AssembledSlide is a slide after layout, mapping, assets and fit.
type AssembledSlide struct {
	Content SlideContent   `json:"content"`
	Layout  Layout         `json:"layout"`
	Mapping ContentMapping `json:"mapping"`
	Flags   []Flag         `json:"flags,omitempty"`
}

func (s *AssembledSlide) AddFlag(f Flag) {
	for _, have := range s.Flags {
		if have == f {
			return
		}
	}
	s.Flags = append(s.Flags, f)
}

func (s AssembledSlide) HasFlag(f Flag) bool {
	for _, have := range s.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// SectionResult is what one section worker hands to Merge.
type SectionResult struct {
	Section Section          `json:"section"`
	Slides  []AssembledSlide `json:"slides"`
	Partial bool             `json:"partial,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the pipeline entry contract's return value.
type Result struct {
	Status       Status     `json:"status"`
	Message      string     `json:"message,omitempty"`
	SessionID    string     `json:"session_id"`
	OutputPath   string     `json:"output_path,omitempty"`
	SectionCount int        `json:"section_count"`
	SlideCount   int        `json:"slide_count"`
	Degraded     []SlideKey `json:"degraded,omitempty"`
	Partial      []int      `json:"partial_sections,omitempty"`
}
