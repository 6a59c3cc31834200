package fit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"deckflow/internal/deckerr"
	"deckflow/internal/types/deck"
)

var body200x100 = deck.Placeholder{Index: 1, Type: deck.PhBody, Name: "Content Placeholder 2", WidthPt: 200, HeightPt: 100}

func TestCapacityFor(t *testing.T) {
	c := CapacityFor(body200x100, 18, false)
	require.Equal(t, Capacity{CharsPerLine: 22, MaxLines: 4, MaxChars: 88}, c)

	// lists use 1.5 line height: floor(100/27) = 3
	c = CapacityFor(body200x100, 18, true)
	require.Equal(t, Capacity{CharsPerLine: 22, MaxLines: 3, MaxChars: 66}, c)

	tiny := deck.Placeholder{WidthPt: 2, HeightPt: 5}
	require.Equal(t, Capacity{CharsPerLine: 1, MaxLines: 1, MaxChars: 1}, CapacityFor(tiny, 18, false))
	require.Equal(t, 0, CapacityFor(tiny, 18, true).MaxLines)
}

func TestFontsFor(t *testing.T) {
	f := DefaultFonts()
	require.Equal(t, 24.0, f.For(deck.Placeholder{Name: "Title 1"}))
	require.Equal(t, 24.0, f.For(deck.Placeholder{Name: "Subtitle 2"}))
	require.Equal(t, 18.0, f.For(deck.Placeholder{Name: "Text Placeholder 3"}))
	require.Equal(t, 30.0, Fonts{TitlePt: 30}.For(deck.Placeholder{Name: "TITLE"}))
}

func TestCheckStringBoundary(t *testing.T) {
	fonts := DefaultFonts()
	for _, tc := range []struct {
		w, h, f float64
	}{
		{200, 100, 18}, {480, 300, 18}, {33, 19, 12}, {720, 60, 24},
	} {
		p := deck.Placeholder{Index: 3, Name: "Body", WidthPt: tc.w, HeightPt: tc.h}
		fonts.BodyPt = tc.f
		c := CapacityFor(p, tc.f, false)

		at := Check(deck.Text(deck.RoleBody, strings.Repeat("x", c.MaxChars)), p, fonts)
		require.True(t, at.Fits)
		require.Empty(t, at.Overflow)

		over := Check(deck.Text(deck.RoleBody, strings.Repeat("x", c.MaxChars+1)), p, fonts)
		require.False(t, over.Fits)
		require.Equal(t, "x", over.Overflow)
	}
}

func TestCheckExample(t *testing.T) {
	fonts := DefaultFonts()
	r := Check(deck.Text(deck.RoleBody, strings.Repeat("a", 50)), body200x100, fonts)
	require.True(t, r.Fits)
	require.NoError(t, r.Err())

	r = Check(deck.Text(deck.RoleBody, strings.Repeat("a", 200)), body200x100, fonts)
	require.False(t, r.Fits)
	require.Len(t, r.Overflow, 112)
	var ovf *deckerr.FitOverflowError
	require.ErrorAs(t, r.Err(), &ovf)
	require.Equal(t, 88, ovf.MaxChars)

	cut := Truncate(deck.Text(deck.RoleBody, strings.Repeat("a", 200)), body200x100, fonts)
	require.Len(t, []rune(cut.Text), 88)
}

func TestCheckCountsRunes(t *testing.T) {
	r := Check(deck.Text(deck.RoleBody, strings.Repeat("日", 88)), body200x100, DefaultFonts())
	require.True(t, r.Fits)
}

func TestCheckList(t *testing.T) {
	fonts := DefaultFonts()
	// 3 lines available, 22 chars per line
	fits := deck.List(deck.RoleBody, []string{strings.Repeat("a", 22), strings.Repeat("b", 20), "c"})
	require.True(t, Check(fits, body200x100, fonts).Fits)

	over := deck.List(deck.RoleBody, []string{strings.Repeat("a", 30), strings.Repeat("b", 10), "c"})
	r := Check(over, body200x100, fonts)
	require.False(t, r.Fits)
	require.Equal(t, 4, r.Used)
	require.Equal(t, "c", r.Overflow)

	cut := Truncate(over, body200x100, fonts)
	require.Equal(t, []string{strings.Repeat("a", 30), strings.Repeat("b", 10)}, cut.Items)

	crossing := deck.List(deck.RoleBody, []string{strings.Repeat("a", 30), strings.Repeat("b", 30)})
	r = Check(crossing, body200x100, fonts)
	require.False(t, r.Fits)
	require.Equal(t, strings.Repeat("b", 8), r.Overflow)
	cut = Truncate(crossing, body200x100, fonts)
	require.Equal(t, []string{strings.Repeat("a", 30), strings.Repeat("b", 22)}, cut.Items)
}

func TestCheckListZeroCapacity(t *testing.T) {
	flat := deck.Placeholder{Index: 4, Name: "Footer text", WidthPt: 300, HeightPt: 20}
	r := Check(deck.List(deck.RoleBody, []string{"one"}), flat, DefaultFonts())
	require.False(t, r.Fits)
	require.Equal(t, 0, r.MaxLines)
	require.Equal(t, "one", r.Overflow)
	require.Empty(t, Truncate(deck.List(deck.RoleBody, []string{"one"}), flat, DefaultFonts()).Items)
}

func TestCheckIgnoresAssetsAndEmpty(t *testing.T) {
	require.True(t, Check(deck.Asset(deck.RoleImage, 0, "/x.png"), body200x100, DefaultFonts()).Fits)
	require.True(t, Check(deck.Empty(), body200x100, DefaultFonts()).Fits)
}
