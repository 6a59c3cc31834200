package template

import "deckflow/internal/types/deck"

// Builtin returns a named catalog shipped with the binary. "default" mirrors
// the stock 16:9 Office layouts.
func Builtin(name string) (deck.Catalog, bool) {
	if name != "default" && name != "" {
		return deck.Catalog{}, false
	}
	ph := func(idx int, typ deck.PlaceholderType, name string, l, t, w, h float64) deck.Placeholder {
		return deck.Placeholder{Index: idx, Type: typ, Name: name, LeftPt: l, TopPt: t, WidthPt: w, HeightPt: h}
	}
	title := ph(0, deck.PhTitle, "Title 1", 66, 29, 828, 105)
	sldNum := ph(12, deck.PhSlideNumber, "Slide Number Placeholder 5", 678, 500, 216, 29)

	return deck.Catalog{
		TemplateRef: BuiltinPrefix + "default",
		SlideWidth:  960,
		SlideHeight: 540,
		Layouts: []deck.Layout{
			{Index: 0, Name: "Title Slide", Placeholders: []deck.Placeholder{
				ph(0, deck.PhCenterTitle, "Title 1", 120, 88, 720, 188),
				ph(1, deck.PhSubtitle, "Subtitle 2", 120, 284, 720, 130),
				ph(10, deck.PhDate, "Date Placeholder 3", 66, 500, 216, 29),
				ph(11, deck.PhFooter, "Footer Placeholder 4", 318, 500, 324, 29),
				sldNum,
			}},
			{Index: 1, Name: "Title and Content", Placeholders: []deck.Placeholder{
				title,
				ph(1, deck.PhBody, "Content Placeholder 2", 66, 144, 828, 344),
				sldNum,
			}},
			{Index: 2, Name: "Section Header", Placeholders: []deck.Placeholder{
				ph(0, deck.PhTitle, "Title 1", 66, 135, 828, 225),
				ph(1, deck.PhBody, "Text Placeholder 2", 66, 362, 828, 118),
				sldNum,
			}},
			{Index: 3, Name: "Two Content", Placeholders: []deck.Placeholder{
				title,
				ph(1, deck.PhBody, "Content Placeholder 2", 66, 144, 408, 344),
				ph(2, deck.PhBody, "Content Placeholder 3", 486, 144, 408, 344),
				sldNum,
			}},
			{Index: 4, Name: "Title Only", Placeholders: []deck.Placeholder{title, sldNum}},
			{Index: 5, Name: "Blank", Placeholders: []deck.Placeholder{sldNum}},
			{Index: 6, Name: "Content with Caption", Placeholders: []deck.Placeholder{
				ph(0, deck.PhTitle, "Title 1", 66, 36, 310, 126),
				ph(1, deck.PhObject, "Content Placeholder 2", 408, 78, 486, 384),
				ph(2, deck.PhBody, "Text Placeholder 3", 66, 162, 310, 300),
				sldNum,
			}},
			{Index: 7, Name: "Picture with Caption", Placeholders: []deck.Placeholder{
				ph(0, deck.PhTitle, "Title 1", 66, 36, 310, 126),
				ph(1, deck.PhPicture, "Picture Placeholder 2", 408, 78, 486, 384),
				ph(2, deck.PhBody, "Text Placeholder 3", 66, 162, 310, 300),
				sldNum,
			}},
		},
	}, true
}
