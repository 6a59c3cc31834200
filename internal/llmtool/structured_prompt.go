// Package llmtool renders sectioned prompts for the deck agents and decodes
// their JSON answers into typed, validated results.
package llmtool

import (
	"errors"
	"fmt"
	"strings"
)

// PromptField is one key of the JSON object the model must return.
type PromptField struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// StructuredPromptSpec is the fixed part of an agent prompt. The call input
// travels separately as JSON, so it never appears in the rendered text.
type StructuredPromptSpec struct {
	Purpose      string
	Background   string
	OutputFields []PromptField
	Constraints  []string
	Rules        []string
	OutputFormat string
	Language     string
}

// Render lays the spec out as bracketed sections. Empty sections are
// skipped; purpose and output fields are mandatory.
func (spec StructuredPromptSpec) Render() (string, error) {
	if strings.TrimSpace(spec.Purpose) == "" {
		return "", errors.New("llmtool: purpose is empty")
	}
	if len(spec.OutputFields) == 0 {
		return "", errors.New("llmtool: output fields are empty")
	}
	sections := []struct{ title, body string }{
		{"PURPOSE", spec.Purpose},
		{"BACKGROUND", spec.Background},
		{"OUTPUT", fieldLines(spec.OutputFields)},
		{"CONSTRAINTS", bullets(spec.Constraints)},
		{"RULES", bullets(spec.Rules)},
		{"OUTPUT_FORMAT", spec.OutputFormat},
		{"LANGUAGE", spec.Language},
	}
	var b strings.Builder
	for _, s := range sections {
		body := strings.TrimSpace(s.body)
		if body == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s]\n%s\n", s.title, body)
	}
	return b.String(), nil
}

// WithLanguage returns a copy answering in lang, keeping the default when empty.
func (spec StructuredPromptSpec) WithLanguage(lang string) StructuredPromptSpec {
	if strings.TrimSpace(lang) != "" {
		spec.Language = "Write every human-readable value in " + lang + "."
	}
	return spec
}

func fieldLines(fields []PromptField) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		need := "optional"
		if f.Required {
			need = "required"
		}
		line := fmt.Sprintf("- %s (%s, %s)", name, f.Type, need)
		if f.Description != "" {
			line += ": " + f.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func bullets(items []string) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			lines = append(lines, "- "+it)
		}
	}
	return strings.Join(lines, "\n")
}
