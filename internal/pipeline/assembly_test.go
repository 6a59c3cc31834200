package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"deckflow/internal/asset"
	"deckflow/internal/deckerr"
	"deckflow/internal/fit"
	"deckflow/internal/layout"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/session"
	"deckflow/internal/template"
	"deckflow/internal/types/deck"
)

type brokenRenderer struct{}

func (brokenRenderer) Render(context.Context, string, string) error {
	return &deckerr.RenderError{Message: "syntax error"}
}

func assembleOne(t *testing.T, client *llmclient.ScriptedClient, renderer asset.Renderer, sec deck.Section, slide deck.SlideContent) (deck.AssembledSlide, *session.Store) {
	t.Helper()
	cat, ok := template.Builtin("default")
	require.True(t, ok)
	store := session.New("s1", request)
	require.NoError(t, store.SetOutline(deck.Outline{Title: "T", Sections: []deck.Section{sec}}))
	require.NoError(t, store.AppendSlides(sec.Index, slide))

	a := &Assembler{
		Selector: &layout.Selector{LLM: client, Retries: 1},
		Mapper:   &layout.Mapper{LLM: client, Retries: 1},
		Assets:   &asset.Resolver{LLM: client, Renderer: renderer},
		Fit:      fit.Engine{Fonts: fit.DefaultFonts(), MaxRetries: 3},
		LLM:      client,
		WorkDir:  t.TempDir(),
	}
	res, err := a.Assemble(context.Background(), store, sec, []deck.SlideContent{slide}, cat)
	require.NoError(t, err)
	require.Len(t, res.Slides, 1)
	return res.Slides[0], store
}

var agenda = deck.Section{Index: 0, Title: "Agenda", Kind: deck.KindAgenda, EstimatedSlides: 1}

func longSlide() deck.SlideContent {
	body := strings.TrimSpace(strings.Repeat("caching keeps hot data close ", 60))
	return deck.SlideContent{Title: "Overview", Body: deck.TextBody(body)}
}

// The content placeholder of "Title and Content" holds 92 chars x 14 lines at 18pt.
const contentCapacity = 92 * 14

func TestOverflowIsRewrittenNotTruncated(t *testing.T) {
	client := llmclient.NewFakeClient()
	as, store := assembleOne(t, client, asset.NewChartRenderer(), agenda, longSlide())

	require.Empty(t, as.Flags)
	require.Equal(t, 1, client.Calls(StageRefit))
	require.Equal(t, 1, as.Layout.Index)
	require.LessOrEqual(t, as.Mapping.Values[1].Body().Len(), contentCapacity)

	stored := store.Slides(0)[0]
	require.Equal(t, as.Content.Body.String(), stored.Body.String())
	require.Less(t, stored.Body.Len(), longSlide().Body.Len())
}

func TestOverflowTruncatesWhenRewritesFail(t *testing.T) {
	client := llmclient.NewFakeClient()
	client.On(StageRefit, func(context.Context, string, any) (json.RawMessage, error) {
		return nil, errors.New("provider unavailable")
	})
	as, _ := assembleOne(t, client, asset.NewChartRenderer(), agenda, longSlide())

	require.True(t, as.HasFlag(deck.FlagDegraded))
	require.Equal(t, 3, client.Calls(StageRefit))
	require.Equal(t, contentCapacity, as.Mapping.Values[1].Body().Len())
}

func TestRefitResubmitsWholeSlide(t *testing.T) {
	client := llmclient.NewFakeClient()
	var inputs []json.RawMessage
	client.On(StageRefit, func(_ context.Context, _ string, input any) (json.RawMessage, error) {
		raw, err := json.Marshal(input)
		require.NoError(t, err)
		inputs = append(inputs, raw)
		return nil, errors.New("provider unavailable")
	})
	slide := longSlide()
	slide.Notes = "mention the hit ratio"
	slide.Keywords = []string{"cache", "latency"}
	assembleOne(t, client, asset.NewChartRenderer(), agenda, slide)

	require.NotEmpty(t, inputs)
	var got struct {
		Slide struct {
			Title    string   `json:"title"`
			Content  string   `json:"content"`
			Notes    string   `json:"notes"`
			Keywords []string `json:"keywords"`
		} `json:"slide"`
		Mapping map[string]struct {
			Text string `json:"text"`
		} `json:"mapping"`
	}
	require.NoError(t, json.Unmarshal(inputs[0], &got))
	require.Equal(t, "Overview", got.Slide.Title)
	require.Equal(t, slide.Body.String(), got.Slide.Content)
	require.Equal(t, "mention the hit ratio", got.Slide.Notes)
	require.Equal(t, []string{"cache", "latency"}, got.Slide.Keywords)
	// the title fits, yet it travels with the correction
	require.Equal(t, "Overview", got.Mapping["0"].Text)
	require.Contains(t, got.Mapping, "1")
}

func TestFailedDiagramLeavesPlaceholderEmpty(t *testing.T) {
	client := llmclient.NewFakeClient()
	sec := deck.Section{Index: 0, Title: "Wrap up", Kind: deck.KindConclusion, EstimatedSlides: 1}
	slide := deck.SlideContent{
		Title:    "How it fits together",
		Body:     deck.ListBody("ingest", "serve"),
		Diagrams: []deck.DiagramRequest{{Description: "request flow", Data: "client, edge, origin"}},
	}
	as, store := assembleOne(t, client, brokenRenderer{}, sec, slide)

	require.True(t, as.HasFlag(deck.FlagDiagramError))
	require.False(t, as.HasFlag(deck.FlagDegraded))
	require.Equal(t, layout.ClassVisual, layout.Classify(as.Layout))
	require.Equal(t, len(asset.DefaultDiagramTypes), client.Calls(asset.StageDiagram))
	for _, idx := range as.Mapping.Indices() {
		require.NotEqual(t, deck.ValueAsset, as.Mapping.Values[idx].Kind)
	}
	require.Empty(t, store.Snapshot().UsedDiagramTypes)
}

func TestContentFromMappingJoinsSplitLists(t *testing.T) {
	sl := deck.SlideContent{Title: "Old", Body: deck.ListBody("a", "b", "c")}
	m := deck.ContentMapping{Values: map[int]deck.MappedValue{
		0: deck.Text(deck.RoleTitle, "New"),
		1: deck.List(deck.RoleBody, []string{"a"}),
		2: deck.List(deck.RoleBody, []string{"b2"}),
		3: deck.Empty(),
	}}
	got := contentFromMapping(sl, m)
	require.Equal(t, "New", got.Title)
	require.Equal(t, []string{"a", "b2"}, got.Body.Items)
}
