package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"deckflow/internal/artifact"
	"deckflow/internal/assemble"
	"deckflow/internal/asset"
	"deckflow/internal/audit"
	"deckflow/internal/deckerr"
	"deckflow/internal/fit"
	"deckflow/internal/layout"
	"deckflow/internal/llm"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/session"
	"deckflow/internal/template"
	"deckflow/internal/types/deck"
)

type harness struct {
	orch  *Orchestrator
	store *artifact.MemoryStore
	audit *audit.Log
}

func newHarness(t *testing.T, client llmclient.LLMClient) harness {
	t.Helper()
	client = llm.Wrap(client, llm.WithHooks())
	cat, err := template.NewCatalog(4, nil)
	require.NoError(t, err)
	store := artifact.NewMemoryStore()
	drafts := audit.NewLog("", nil)
	return harness{
		store: store,
		audit: drafts,
		orch: &Orchestrator{
			Outline: &OutlineStage{LLM: client, Candidates: 2, Retries: 2, Drafts: drafts},
			Content: &ContentStage{LLM: client, Candidates: 2, Retries: 2, Drafts: drafts},
			Assembler: &Assembler{
				Selector: &layout.Selector{LLM: client, Retries: 2},
				Mapper:   &layout.Mapper{LLM: client, Retries: 2},
				Assets:   &asset.Resolver{LLM: client, Renderer: asset.NewChartRenderer()},
				Fit:      fit.Engine{Fonts: fit.DefaultFonts(), MaxRetries: 3},
				LLM:      client,
				WorkDir:  t.TempDir(),
				Drafts:   drafts,
			},
			Templates: cat,
			Sessions:  session.NewRegistry(),
			Audit:     drafts,
			Writer:    &assemble.Writer{Store: store},
			Workers:   3,
		},
	}
}

var request = deck.Request{
	Topic:           "Edge caching",
	Audience:        "platform engineers",
	DurationMinutes: 10,
	Purpose:         "adopt a shared cache",
	TemplateRef:     "builtin:default",
}

// failPhase fails every call of one phase, or only calls for one section.
type failPhase struct {
	llmclient.LLMClient
	phase   string
	section int
}

func (f failPhase) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if llmclient.PhaseFrom(ctx) == f.phase {
		in, _ := input.(map[string]any)
		sec, hasSection := in["section"].(deck.Section)
		if f.section < 0 || (hasSection && sec.Index == f.section) {
			return nil, errors.New("provider unavailable")
		}
	}
	return f.LLMClient.GenerateJSON(ctx, prompt, input)
}

func manifest(t *testing.T, store *artifact.MemoryStore, sessionID string) assemble.Manifest {
	t.Helper()
	raw, err := store.Get(context.Background(), sessionID, assemble.ManifestPath)
	require.NoError(t, err)
	var m assemble.Manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestGenerateProducesOrderedDeck(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, llmclient.NewFakeClient())

	res := h.orch.Generate(context.Background(), request)
	require.Equal(t, deck.StatusSuccess, res.Status, res.Message)
	// title, agenda, two chapters of two slides, conclusion
	require.Equal(t, 5, res.SectionCount)
	require.Equal(t, 7, res.SlideCount)
	require.Empty(t, res.Partial)
	require.Empty(t, res.Degraded, "content that fits must not be flagged")
	require.Equal(t, res.SessionID+"/"+assemble.HTMLPath, res.OutputPath)

	m := manifest(t, h.store, res.SessionID)
	for i, s := range m.Sections {
		require.Equal(t, i, s.Section.Index)
	}
	chapter := m.Sections[2]
	require.Equal(t, deck.KindChapter, chapter.Section.Kind)
	header, _ := m.Catalog.Layout(chapter.Slides[0].Layout.Index)
	require.Equal(t, layout.ClassSectionHeader, layout.Classify(header))

	html, err := h.store.Get(context.Background(), res.SessionID, assemble.HTMLPath)
	require.NoError(t, err)
	require.Contains(t, string(html), "Edge caching")
	_, err = h.store.Get(context.Background(), res.SessionID, assemble.SectionPath(4))
	require.NoError(t, err)
	_, err = h.store.Get(context.Background(), res.SessionID, assemble.SnapshotPath)
	require.NoError(t, err)

	st, ok := h.orch.Sessions.Get(res.SessionID)
	require.True(t, ok)
	got, ok := st.Result()
	require.True(t, ok)
	require.Equal(t, res, got)
	// both chapters asked for a diagram
	require.NotEmpty(t, st.Snapshot().UsedDiagramTypes)

	stages := map[string]int{}
	prompts := 0
	for _, d := range h.audit.List(res.SessionID) {
		stages[d.Agent+"/"+d.Stage]++
		if d.Stage == audit.StagePrompt {
			prompts++
		}
	}
	require.Equal(t, 1, stages[AgentOutline+"/"+StageOutline])
	require.Equal(t, 5, stages[AgentContent+"/"+StageContent])
	require.Equal(t, 7, stages[AgentAssembly+"/"+StageSlide])
	require.Equal(t, 1, stages[AgentOrchestrator+"/"+StageResult])
	require.Positive(t, prompts)
}

func TestSectionFailureLeavesOtherSections(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, failPhase{LLMClient: llmclient.NewFakeClient(), phase: StageContent, section: 2})

	res := h.orch.Generate(context.Background(), request)
	require.Equal(t, deck.StatusSuccess, res.Status, res.Message)
	require.Equal(t, []int{2}, res.Partial)
	require.Equal(t, 4, res.SectionCount)
	require.Equal(t, 5, res.SlideCount)

	m := manifest(t, h.store, res.SessionID)
	require.Len(t, m.Sections, 5)
	require.True(t, m.Sections[2].Partial)
	require.Empty(t, m.Sections[2].Slides)
	require.Contains(t, m.Sections[2].Error, "no valid candidate")
}

func TestOutlineFailureIsFatal(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, failPhase{LLMClient: llmclient.NewFakeClient(), phase: StageOutline, section: -1})

	res := h.orch.Generate(context.Background(), request)
	require.Equal(t, deck.StatusError, res.Status)
	require.True(t, strings.HasPrefix(res.Message, StageOutline+":"), res.Message)
	_, err := h.store.Get(context.Background(), res.SessionID, assemble.HTMLPath)
	require.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestInvalidRequestIsFatal(t *testing.T) {
	h := newHarness(t, llmclient.NewFakeClient())
	bad := request
	bad.DurationMinutes = 0
	res := h.orch.Generate(context.Background(), bad)
	require.Equal(t, deck.StatusError, res.Status)
	require.Contains(t, res.Message, "duration_minutes")
}

func TestMergeOrdersByIndex(t *testing.T) {
	done := []deck.SectionResult{
		{Section: deck.Section{Index: 2}},
		{Section: deck.Section{Index: 0}},
		{Section: deck.Section{Index: 1}},
	}
	merged := Merge(done)
	for i, r := range merged {
		require.Equal(t, i, r.Section.Index)
	}
	require.Equal(t, 2, done[0].Section.Index, "input is not reordered")
}

func TestOutlineStageKeepsBestCandidate(t *testing.T) {
	defer goleak.VerifyNone(t)
	thin := deck.Outline{Title: "T", Sections: []deck.Section{{Index: 0, Title: "Only", Kind: deck.KindTitle}}}
	rich := deck.Outline{
		Title: "T", TargetAudience: "ops", OverallMessage: "cache wisely",
		Sections: []deck.Section{
			{Index: 0, Title: "Intro", Description: "d", KeyPoints: []string{"a"}, EstimatedSlides: 2, Kind: deck.KindTitle},
			{Index: 1, Title: "Body", Description: "d", KeyPoints: []string{"b"}, EstimatedSlides: 2, Kind: deck.KindChapter},
		},
	}
	client := llmclient.NewScriptedClient().On(StageOutline, func(_ context.Context, _ string, input any) (json.RawMessage, error) {
		n := input.(map[string]any)["candidate"].(int)
		switch n {
		case 0:
			return json.Marshal(thin)
		case 1:
			return json.Marshal(rich)
		}
		return json.RawMessage(`{"title":""}`), nil
	})
	st := &OutlineStage{LLM: client, Candidates: 3, Retries: 1}
	got, err := st.Run(context.Background(), "s", request)
	require.NoError(t, err)
	require.Equal(t, "cache wisely", got.OverallMessage)
}

func TestContentStageNumbersSlides(t *testing.T) {
	client := llmclient.NewScriptedClient().OnJSON(StageContent, map[string]any{"slides": []map[string]any{
		{"title": "One", "content": "a"},
		{"title": "Two", "content": []string{"b", "c"}},
		{"title": "Three", "content": "d"},
	}})
	st := &ContentStage{LLM: client, Candidates: 1, Retries: 1}
	sec := deck.Section{Index: 3, Title: "S", EstimatedSlides: 1, Kind: deck.KindChapter}
	slides, err := st.Run(context.Background(), "s", request, deck.Outline{Title: "T"}, sec)
	require.NoError(t, err)
	// capped at twice the estimate
	require.Len(t, slides, 2)
	for i, sl := range slides {
		require.Equal(t, 3, sl.SectionIndex)
		require.Equal(t, i, sl.SlideIndex)
	}
	require.True(t, slides[1].Body.IsList())
}

func TestContentStageRejectsUntitledSlides(t *testing.T) {
	client := llmclient.NewScriptedClient().OnJSON(StageContent, map[string]any{"slides": []map[string]any{{"title": " ", "content": "x"}}})
	st := &ContentStage{LLM: client, Candidates: 2, Retries: 2}
	_, err := st.Run(context.Background(), "s", request, deck.Outline{}, deck.Section{Title: "S", EstimatedSlides: 1})
	var nvc *deckerr.NoValidCandidateError
	require.ErrorAs(t, err, &nvc)
	require.Equal(t, 4, client.Calls(StageContent))
}
