package llmtool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"deckflow/internal/deckerr"
	llmclient "deckflow/internal/llmClient"
)

func TestStructuredPromptRender_RendersSections(t *testing.T) {
	spec := StructuredPromptSpec{
		Purpose:      "Draft a presentation outline.",
		Background:   "Stage outline of the deck pipeline.",
		OutputFormat: "JSON only.",
		Language:     "English",
		OutputFields: []PromptField{
			{Name: "title", Type: "string", Required: true, Description: "Deck title."},
			{Name: "sections", Type: "[]Section", Required: false},
		},
		Constraints: []string{"No markdown."},
		Rules:       []string{"Be concise."},
	}

	out, err := spec.Render()
	require.NoError(t, err)
	for _, sec := range []string{
		"[PURPOSE]", "[BACKGROUND]", "[OUTPUT]", "[CONSTRAINTS]", "[RULES]",
		"[OUTPUT_FORMAT]", "[LANGUAGE]",
	} {
		require.Contains(t, out, sec)
	}
	require.Contains(t, out, "- title (string, required): Deck title.")
	require.Contains(t, out, "- sections ([]Section, optional)")
	require.Less(t, strings.Index(out, "[PURPOSE]"), strings.Index(out, "[OUTPUT]"))
}

func TestStructuredPromptRender_SkipsEmptySections(t *testing.T) {
	out, err := StructuredPromptSpec{
		Purpose:      "x",
		OutputFields: []PromptField{{Name: "a", Type: "int", Required: true}},
	}.Render()
	require.NoError(t, err)
	require.Equal(t, "[PURPOSE]\nx\n\n[OUTPUT]\n- a (int, required)\n", out)
}

func TestStructuredPromptRender_RequiresPurposeAndFields(t *testing.T) {
	_, err := StructuredPromptSpec{OutputFields: []PromptField{{Name: "x", Type: "string"}}}.Render()
	require.ErrorContains(t, err, "purpose")

	_, err = StructuredPromptSpec{Purpose: "x"}.Render()
	require.ErrorContains(t, err, "output fields")
}

func TestApplyPresets_PrependConstraintsAndRules(t *testing.T) {
	spec := StructuredPromptSpec{
		Purpose:      "x",
		OutputFields: []PromptField{{Name: "summary", Type: "string", Required: true}},
		Constraints:  []string{"spec-constraint"},
		Rules:        []string{"spec-rule"},
	}
	applied := ApplyPresets(spec, PromptPreset{
		Constraints: []string{"preset-constraint"},
		Rules:       []string{"preset-rule"},
	})
	require.Equal(t, []string{"preset-constraint", "spec-constraint"}, applied.Constraints)
	require.Equal(t, []string{"preset-rule", "spec-rule"}, applied.Rules)
}

func TestWithLanguage(t *testing.T) {
	spec := StructuredPromptSpec{Language: "English"}
	require.Equal(t, "English", spec.WithLanguage("").Language)
	require.True(t, strings.Contains(spec.WithLanguage("Japanese").Language, "Japanese"))
}

type titled struct {
	Title string `json:"title" prompt_desc:"Deck title."`
	Notes string `json:"notes,omitempty" prompt:"optional"`
	Skip  string `json:"-"`
}

func (t *titled) Validate() error {
	if t.Title == "" {
		return errors.New("title is empty")
	}
	return nil
}

func TestFieldsFromStruct(t *testing.T) {
	fields := MustFieldsFromStruct(titled{})
	require.Equal(t, []PromptField{
		{Name: "title", Type: "string", Required: true, Description: "Deck title."},
		{Name: "notes", Type: "string", Required: false},
	}, fields)
}

type nested struct {
	Items []struct {
		Label string  `json:"label"`
		Score float64 `json:"score,omitempty"`
	} `json:"items"`
	Counts map[string]int `json:"counts,omitempty"`
	Hidden string         `json:"hidden" prompt:"-"`
	Forced string         `json:"forced,omitempty" prompt:"required"`
}

func TestFieldsFromStructSpellsNestedShapes(t *testing.T) {
	fields := MustFieldsFromStruct(&nested{})
	require.Equal(t, []PromptField{
		{Name: "items", Type: "[]{label:string, score:number}", Required: true},
		{Name: "counts", Type: "map[string]int", Required: false},
		{Name: "forced", Type: "string", Required: true},
	}, fields)

	_, err := FieldsFromStruct(42)
	require.Error(t, err)
}

var titledSpec = StructuredPromptSpec{
	Purpose:      "Title a deck.",
	OutputFields: MustFieldsFromStruct(titled{}),
}

func TestInvoke(t *testing.T) {
	cli := llmclient.NewScriptedClient().
		On("outline",
			func(context.Context, string, any) (json.RawMessage, error) {
				return json.RawMessage("```json\n{\"title\":\"Go\"}\n```"), nil
			},
			func(context.Context, string, any) (json.RawMessage, error) {
				return json.RawMessage(`{"title":""}`), nil
			},
			func(context.Context, string, any) (json.RawMessage, error) {
				return nil, errors.New("503")
			},
		)

	out, _, err := Invoke[titled](context.Background(), cli, Call{Stage: "outline", Spec: titledSpec})
	require.NoError(t, err)
	require.Equal(t, "Go", out.Title)

	_, raw, err := Invoke[titled](context.Background(), cli, Call{Stage: "outline", Spec: titledSpec})
	var spe *deckerr.SchemaParseError
	require.ErrorAs(t, err, &spe)
	require.Equal(t, "outline", spe.Stage)
	require.JSONEq(t, `{"title":""}`, string(raw))

	_, _, err = Invoke[titled](context.Background(), cli, Call{Stage: "outline", Spec: titledSpec})
	var gen *deckerr.GenerationError
	require.ErrorAs(t, err, &gen)
	require.Equal(t, 3, cli.Calls("outline"))
}
