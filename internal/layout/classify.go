// Package layout chooses a layout for every slide and maps slide content onto
// the chosen layout's placeholders.
package layout

import (
	"sort"
	"strings"

	"deckflow/internal/types/deck"
)

// Class is the coarse shape of a layout, derived from its placeholders.
type Class string

const (
	ClassTitle         Class = "title"
	ClassSectionHeader Class = "section_header"
	ClassContent       Class = "content"
	ClassVisual        Class = "visual"
	ClassTitleOnly     Class = "title_only"
	ClassBlank         Class = "blank"
)

// Classify derives a layout's class from the usable placeholders it offers.
func Classify(l deck.Layout) Class {
	var titles, subtitles, bodies, objects, visuals []deck.Placeholder
	for _, p := range l.Placeholders {
		switch p.Type {
		case deck.PhCenterTitle, deck.PhTitle:
			titles = append(titles, p)
		case deck.PhSubtitle:
			subtitles = append(subtitles, p)
		case deck.PhBody:
			bodies = append(bodies, p)
		case deck.PhObject:
			objects = append(objects, p)
		case deck.PhPicture, deck.PhDiagram, deck.PhChart:
			visuals = append(visuals, p)
		}
	}
	text := append(append([]deck.Placeholder(nil), bodies...), objects...)
	name := strings.ToLower(l.Name)
	switch {
	case len(titles)+len(subtitles)+len(bodies)+len(objects)+len(visuals) == 0:
		return ClassBlank
	case l.Has(func(p deck.Placeholder) bool { return p.Type == deck.PhCenterTitle }),
		len(titles) > 0 && len(subtitles) > 0 && len(bodies)+len(objects)+len(visuals) == 0:
		return ClassTitle
	case len(visuals) > 0, len(objects) > 0 && len(bodies) > 0:
		return ClassVisual
	case len(titles) > 0 && len(text) == 1 &&
		(strings.Contains(name, "section") || strings.Contains(name, "header") || titles[0].HeightPt > text[0].HeightPt):
		return ClassSectionHeader
	case len(text) > 0:
		return ClassContent
	}
	return ClassTitleOnly
}

// AllowedClasses is the layout classes a slide may use given its section kind
// and position. The first slide of a chapter opens it with a section header.
func AllowedClasses(kind deck.SectionKind, slidePos int) []Class {
	switch kind {
	case deck.KindTitle:
		return []Class{ClassTitle}
	case deck.KindAgenda:
		return []Class{ClassContent}
	case deck.KindChapter:
		if slidePos == 0 {
			return []Class{ClassSectionHeader}
		}
		return []Class{ClassContent, ClassVisual}
	case deck.KindConclusion:
		return []Class{ClassContent, ClassVisual, ClassTitleOnly}
	case deck.KindQA:
		return []Class{ClassTitleOnly, ClassTitle, ClassSectionHeader}
	}
	return []Class{ClassContent, ClassVisual}
}

// Candidates returns the layout indices a slide may use, in catalog order.
// When no layout matches the section kind every layout is allowed.
func Candidates(cat deck.Catalog, kind deck.SectionKind, slidePos int) []int {
	want := map[Class]bool{}
	for _, c := range AllowedClasses(kind, slidePos) {
		want[c] = true
	}
	var out, all []int
	for _, l := range cat.Layouts {
		all = append(all, l.Index)
		if want[Classify(l)] {
			out = append(out, l.Index)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

// UsablePlaceholders filters a layout to the placeholder types content may be
// mapped into, largest first.
func UsablePlaceholders(l deck.Layout) []deck.Placeholder {
	var out []deck.Placeholder
	for _, p := range l.Placeholders {
		if p.Type.Usable() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Area() > out[j].Area() })
	return out
}
