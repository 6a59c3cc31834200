package layout

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"deckflow/internal/fit"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/template"
	"deckflow/internal/types/deck"
)

func builtin(t *testing.T) deck.Catalog {
	t.Helper()
	cat, ok := template.Builtin("default")
	require.True(t, ok)
	return cat
}

func TestClassifyBuiltin(t *testing.T) {
	cat := builtin(t)
	got := map[string]Class{}
	for _, l := range cat.Layouts {
		got[l.Name] = Classify(l)
	}
	require.Equal(t, map[string]Class{
		"Title Slide":          ClassTitle,
		"Title and Content":    ClassContent,
		"Section Header":       ClassSectionHeader,
		"Two Content":          ClassContent,
		"Title Only":           ClassTitleOnly,
		"Blank":                ClassBlank,
		"Content with Caption": ClassVisual,
		"Picture with Caption": ClassVisual,
	}, got)
}

func TestCandidatesByKind(t *testing.T) {
	cat := builtin(t)
	require.Equal(t, []int{0}, Candidates(cat, deck.KindTitle, 0))
	require.Equal(t, []int{1, 3}, Candidates(cat, deck.KindAgenda, 0))
	require.Equal(t, []int{2}, Candidates(cat, deck.KindChapter, 0))
	require.Equal(t, []int{1, 3, 6, 7}, Candidates(cat, deck.KindChapter, 1))
	require.Equal(t, []int{1, 3, 4, 6, 7}, Candidates(cat, deck.KindConclusion, 2))
	require.Equal(t, []int{0, 2, 4}, Candidates(cat, deck.KindQA, 0))

	blankOnly := deck.Catalog{Layouts: []deck.Layout{{Index: 3, Name: "Blank"}, {Index: 5, Name: "Also blank"}}}
	require.Equal(t, []int{3, 5}, Candidates(blankOnly, deck.KindTitle, 0))
}

func chapterSlides() []deck.SlideContent {
	return []deck.SlideContent{
		{SectionIndex: 2, SlideIndex: 0, Title: "Concurrency"},
		{SectionIndex: 2, SlideIndex: 1, Title: "Goroutines", Body: deck.ListBody("cheap", "multiplexed")},
		{SectionIndex: 2, SlideIndex: 2, Title: "Pipeline", Diagrams: []deck.DiagramRequest{{Description: "fan-out flow"}}},
	}
}

func TestSelectorRetriesInvalidSelection(t *testing.T) {
	cli := llmclient.NewScriptedClient().On(StageLayout,
		func(context.Context, string, any) (json.RawMessage, error) {
			return json.RawMessage(`{"layout_indexes":[2,1]}`), nil
		},
		func(context.Context, string, any) (json.RawMessage, error) {
			return json.RawMessage(`{"layout_indexes":[1,1,7]}`), nil
		},
		func(context.Context, string, any) (json.RawMessage, error) {
			return json.RawMessage(`{"layout_indexes":[2,3,7]}`), nil
		},
	)
	s := &Selector{LLM: cli, Retries: 3}
	sec := deck.Section{Index: 2, Title: "Concurrency", Kind: deck.KindChapter}
	got, err := s.Select(context.Background(), sec, chapterSlides(), builtin(t))
	require.NoError(t, err)
	require.Equal(t, []int{2, 3, 7}, got)
	require.Equal(t, 3, cli.Calls(StageLayout))
}

func TestSelectorFallsBackToHeuristic(t *testing.T) {
	cli := llmclient.NewScriptedClient().OnJSON(StageLayout, map[string]any{"layout_indexes": []int{99}})
	s := &Selector{LLM: cli, Retries: 2}
	sec := deck.Section{Index: 2, Kind: deck.KindChapter}
	got, err := s.Select(context.Background(), sec, chapterSlides(), builtin(t))
	require.NoError(t, err)
	require.Equal(t, []int{2, 1, 6}, got)
	require.Equal(t, 2, cli.Calls(StageLayout))
}

func TestFromRawValidates(t *testing.T) {
	cat := builtin(t)
	pic, _ := cat.Layout(7)
	slide := deck.SlideContent{SectionIndex: 1, SlideIndex: 4, Title: "Gopher", Images: []deck.ImageRequest{{Description: "a gopher"}}}
	paths := AssetPaths("/out/s1")

	raw := func(s string) map[string]deck.RawValue {
		var m map[string]deck.RawValue
		require.NoError(t, json.Unmarshal([]byte(s), &m))
		return m
	}

	cm, err := FromRaw(raw(`{"0":"Gopher","1":"image:0","2":["cute","fast"]}`), slide, pic, paths)
	require.NoError(t, err)
	require.Equal(t, deck.Text(deck.RoleTitle, "Gopher"), cm.Values[0])
	require.Equal(t, "/out/s1/assets/s01_p04_image_0.png", cm.Values[1].Path)
	require.Equal(t, []string{"cute", "fast"}, cm.Values[2].Items)
	require.True(t, cm.Values[12].IsEmpty())

	for name, bad := range map[string]string{
		"unknown":       `{"5":"x"}`,
		"not usable":    `{"12":"7"}`,
		"asset on body": `{"2":"image:0"}`,
		"missing asset": `{"1":"diagram:0"}`,
		"text on pic":   `{"1":"hello"}`,
		"bad key":       `{"one":"x"}`,
	} {
		_, err := FromRaw(raw(bad), slide, pic, paths)
		require.Error(t, err, name)
	}
}

func TestMapperFallsBackToRules(t *testing.T) {
	cat := builtin(t)
	l, _ := cat.Layout(1)
	cli := llmclient.NewScriptedClient().OnJSON(StageMapping, map[string]any{"mappings": map[string]any{"42": "x"}})
	m := &Mapper{LLM: cli, Retries: 2}
	slide := deck.SlideContent{Title: "Why Go", Body: deck.TextBody("Simple and fast.")}
	cm, err := m.Map(context.Background(), deck.Section{}, slide, l)
	require.NoError(t, err)
	require.Equal(t, "Why Go", cm.Values[0].Text)
	require.Equal(t, "Simple and fast.", cm.Values[1].Text)
	require.NoError(t, cm.Validate(l))
	require.Equal(t, 2, cli.Calls(StageMapping))
}

func TestMapperAcceptsModelMapping(t *testing.T) {
	cat := builtin(t)
	l, _ := cat.Layout(0)
	cli := llmclient.NewScriptedClient().OnJSON(StageMapping, map[string]any{"mappings": map[string]any{"0": "Deck", "1": "for gophers"}})
	cm, err := (&Mapper{LLM: cli, Retries: 1}).Map(context.Background(), deck.Section{}, deck.SlideContent{Title: "Deck"}, l)
	require.NoError(t, err)
	require.Equal(t, deck.Text(deck.RoleBody, "for gophers"), cm.Values[1])
	require.True(t, cm.Values[10].IsEmpty())
}

func TestRuleMapping(t *testing.T) {
	cat := builtin(t)

	two, _ := cat.Layout(3)
	cm := RuleMapping(deck.SlideContent{Title: "Pros and cons", Body: deck.ListBody("a", "b", "c")}, two, nil)
	require.Equal(t, []string{"a", "b"}, cm.Values[1].Items)
	require.Equal(t, []string{"c"}, cm.Values[2].Items)

	caption, _ := cat.Layout(6)
	slide := deck.SlideContent{SlideIndex: 3, Title: "Flow", Body: deck.TextBody("caption"), Diagrams: []deck.DiagramRequest{{Description: "flow"}}}
	cm = RuleMapping(slide, caption, AssetPaths("/o"))
	require.Equal(t, "caption", cm.Values[2].Text)
	require.Equal(t, deck.RoleDiagram, cm.Values[1].Role)
	require.Equal(t, "/o/assets/s00_p03_diagram_0.png", cm.Values[1].Path)

	cover, _ := cat.Layout(0)
	cm = RuleMapping(deck.SlideContent{Title: "Deck", Body: deck.TextBody("subtitle")}, cover, nil)
	require.Equal(t, "Deck", cm.Values[0].Text)
	require.Equal(t, "subtitle", cm.Values[1].Text)
	require.NoError(t, cm.Validate(cover))
}

func TestRuleMappingThenFitHasNoDegradation(t *testing.T) {
	cat := builtin(t)
	l, _ := cat.Layout(1)
	cm := RuleMapping(deck.SlideContent{Title: "Short", Body: deck.ListBody("one", "two")}, l, nil)
	out := fit.Engine{Fonts: fit.DefaultFonts(), MaxRetries: 3}.Enforce(context.Background(), l, cm, nil)
	require.False(t, out.Degraded)
}
