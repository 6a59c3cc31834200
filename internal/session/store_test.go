package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"deckflow/internal/types/deck"
)

func outline3() deck.Outline {
	return deck.Outline{Title: "t", Sections: []deck.Section{{Index: 0}, {Index: 1}, {Index: 2}}}
}

func slide(sec, idx int) deck.SlideContent {
	return deck.SlideContent{SectionIndex: sec, SlideIndex: idx, Title: "x"}
}

func TestOutlineOnce(t *testing.T) {
	st := New("s", deck.Request{})
	require.ErrorIs(t, st.AppendSlides(0, slide(0, 0)), ErrNoOutline)
	require.NoError(t, st.SetOutline(outline3()))
	require.ErrorIs(t, st.SetOutline(outline3()), ErrOutlineSet)
}

func TestAppendSlidesUniqueness(t *testing.T) {
	st := New("s", deck.Request{})
	require.NoError(t, st.SetOutline(outline3()))
	require.NoError(t, st.AppendSlides(1, slide(1, 1), slide(1, 0)))
	require.ErrorIs(t, st.AppendSlides(1, slide(1, 0)), ErrDuplicateSlide)
	require.ErrorIs(t, st.AppendSlides(2, slide(2, 0), slide(2, 0)), ErrDuplicateSlide)
	require.Error(t, st.AppendSlides(0, slide(1, 5)))
	require.Error(t, st.AppendSlides(7, slide(7, 0)))

	got := st.Slides(1)
	require.Equal(t, 0, got[0].SlideIndex)
	require.Equal(t, 1, got[1].SlideIndex)
	// a failed batch leaves nothing behind
	require.Empty(t, st.Slides(2))
}

func TestReplaceSlide(t *testing.T) {
	st := New("s", deck.Request{})
	require.NoError(t, st.SetOutline(outline3()))
	require.NoError(t, st.AppendSlides(0, slide(0, 0)))
	rev := slide(0, 0)
	rev.Title = "shorter"
	require.NoError(t, st.ReplaceSlide(rev))
	require.Equal(t, "shorter", st.Slides(0)[0].Title)
	require.ErrorIs(t, st.ReplaceSlide(slide(0, 9)), ErrUnknownSlide)
}

func TestConcurrentSectionWriters(t *testing.T) {
	st := New("s", deck.Request{})
	require.NoError(t, st.SetOutline(outline3()))
	var wg sync.WaitGroup
	for sec := 0; sec < 3; sec++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				require.NoError(t, st.AppendSlides(sec, slide(sec, i)))
				st.SetLayout(deck.SlideKey{Section: sec, Slide: i}, i%3)
			}
		}()
	}
	wg.Wait()
	snap := st.Snapshot()
	require.Len(t, snap.Slides, 150)
	require.Len(t, snap.Layouts, 150)
	require.Equal(t, 0, snap.Slides[0].SectionIndex)
	require.Equal(t, 2, snap.Slides[149].SectionIndex)
	require.Equal(t, 49, snap.Slides[149].SlideIndex)
}

func TestDiagramTypesBySlot(t *testing.T) {
	st := New("s", deck.Request{})
	slide := deck.SlideKey{Section: 0, Slide: 0}
	a := deck.AssetSlot{Slide: slide, Placeholder: 1}
	b := deck.AssetSlot{Slide: slide, Placeholder: 2}
	c := deck.AssetSlot{Slide: deck.SlideKey{Section: 1}, Placeholder: 1}

	st.RecordDiagramType(a, "pie")
	require.Empty(t, st.UsedDiagramTypes(a))
	require.Equal(t, map[string]bool{"pie": true}, st.UsedDiagramTypes(b), "same slide, other placeholder")
	require.Equal(t, map[string]bool{"pie": true}, st.UsedDiagramTypes(c))

	st.RecordDiagramType(c, "pie")
	require.Equal(t, []string{"pie"}, st.Snapshot().UsedDiagramTypes)
	st.RecordDiagramType(a, "bar")
	require.Equal(t, map[string]bool{"pie": true}, st.UsedDiagramTypes(c))
	require.Equal(t, []string{"bar", "pie"}, st.Snapshot().UsedDiagramTypes)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	st := r.Create(deck.Request{Topic: "go"})
	got, ok := r.Get(st.ID())
	require.True(t, ok)
	require.Same(t, st, got)
	require.Equal(t, []string{st.ID()}, r.IDs())
	_, ok = r.Get("missing")
	require.False(t, ok)
}
