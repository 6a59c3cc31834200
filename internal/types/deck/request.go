package deck

import (
	"fmt"
	"strings"
)

// Request is the immutable input for one deck generation run.
type Request struct {
	Topic           string `json:"topic" yaml:"topic"`
	Audience        string `json:"audience" yaml:"audience"`
	DurationMinutes int    `json:"duration_minutes" yaml:"duration_minutes"`
	Purpose         string `json:"purpose" yaml:"purpose"`
	TemplateRef     string `json:"template_ref" yaml:"template_ref"`
	Language        string `json:"language,omitempty" yaml:"language,omitempty"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return fmt.Errorf("topic is required")
	}
	if r.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive, got %d", r.DurationMinutes)
	}
	if strings.TrimSpace(r.TemplateRef) == "" {
		return fmt.Errorf("template_ref is required")
	}
	return nil
}

// LanguageOrDefault returns the requested output language, English when unset.
func (r Request) LanguageOrDefault() string {
	if l := strings.TrimSpace(r.Language); l != "" {
		return l
	}
	return "English"
}
