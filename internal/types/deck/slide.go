package deck

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Body is either a single string or an ordered list of bullet strings.
type Body struct {
	Text  string
	Items []string
	list  bool
}

func TextBody(s string) Body { return Body{Text: s} }

func ListBody(items ...string) Body {
	return Body{Items: append([]string{}, items...), list: true}
}

func (b Body) IsList() bool  { return b.list }
func (b Body) IsEmpty() bool { return strings.TrimSpace(b.String()) == "" }

// String joins list items with newlines.
func (b Body) String() string {
	if b.list {
		return strings.Join(b.Items, "\n")
	}
	return b.Text
}

// Len is the rune length of the rendered body.
func (b Body) Len() int { return utf8.RuneCountInString(b.String()) }

func (b Body) MarshalJSON() ([]byte, error) {
	if b.list {
		items := b.Items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(b.Text)
}

func (b *Body) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = Body{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = TextBody(s)
		return nil
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("body list must contain strings: %w", err)
		}
		*b = ListBody(items...)
		return nil
	}
	return fmt.Errorf("body must be a string or a list of strings")
}

// DiagramRequest is a diagram the content stage asked for.
type DiagramRequest struct {
	Description string `json:"description"`
	Data        string `json:"data"`
	Relations   string `json:"relations"`
}

// ImageRequest is an image the content stage asked for.
type ImageRequest struct {
	Description string `json:"description"`
	Query       string `json:"query,omitempty"`
}

// SlideContent is produced by the content stage and only rewritten by the
// fit-correction loop.
type SlideContent struct {
	SectionIndex int              `json:"section_index"`
	SlideIndex   int              `json:"slide_index"`
	Title        string           `json:"title"`
	Body         Body             `json:"content"`
	Notes        string           `json:"notes"`
	Images       []ImageRequest   `json:"images_needed"`
	Diagrams     []DiagramRequest `json:"diagrams_needed"`
	Keywords     []string         `json:"keywords"`
}

// Key identifies a slide across the deck.
type SlideKey struct {
	Section int `json:"section"`
	Slide   int `json:"slide"`
}

func (s SlideContent) Key() SlideKey { return SlideKey{Section: s.SectionIndex, Slide: s.SlideIndex} }

func (k SlideKey) String() string { return fmt.Sprintf("s%02d-p%02d", k.Section, k.Slide) }

// AssetSlot is one visual placeholder of one slide.
type AssetSlot struct {
	Slide       SlideKey `json:"slide"`
	Placeholder int      `json:"placeholder"`
}
