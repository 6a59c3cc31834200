package deck

import (
	"strings"
)

// PlaceholderType is the semantic type of a layout placeholder.
type PlaceholderType string

const (
	PhCenterTitle PlaceholderType = "center_title"
	PhTitle       PlaceholderType = "title"
	PhSubtitle    PlaceholderType = "subtitle"
	PhBody        PlaceholderType = "body"
	PhObject      PlaceholderType = "object"
	PhPicture     PlaceholderType = "picture"
	PhDiagram     PlaceholderType = "diagram"
	PhChart       PlaceholderType = "chart"
	PhSlideNumber PlaceholderType = "slide_number"
	PhDate        PlaceholderType = "date"
	PhFooter      PlaceholderType = "footer"
	PhOther       PlaceholderType = "other"
)

// ParsePlaceholderType maps template vocabulary (PPTX "ctrTitle", "sldNum",
// catalog "CENTER_TITLE") onto PlaceholderType.
func ParsePlaceholderType(s string) PlaceholderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ctrtitle", "center_title", "centertitle":
		return PhCenterTitle
	case "title":
		return PhTitle
	case "subtitle":
		return PhSubtitle
	case "body", "", "text":
		return PhBody
	case "obj", "object":
		return PhObject
	case "pic", "picture", "clipart", "media":
		return PhPicture
	case "dgm", "diagram":
		return PhDiagram
	case "chart", "tbl", "table":
		return PhChart
	case "sldnum", "slide_number":
		return PhSlideNumber
	case "dt", "date":
		return PhDate
	case "ftr", "footer":
		return PhFooter
	}
	return PhOther
}

// Usable reports whether content may be mapped into the type.
func (t PlaceholderType) Usable() bool {
	switch t {
	case PhCenterTitle, PhTitle, PhSubtitle, PhBody, PhObject, PhPicture, PhDiagram, PhChart:
		return true
	}
	return false
}

func (t PlaceholderType) IsTitle() bool { return t == PhCenterTitle || t == PhTitle }
func (t PlaceholderType) IsText() bool  { return t == PhBody || t == PhObject || t == PhSubtitle }

// IsVisual reports whether the placeholder accepts an asset path.
func (t PlaceholderType) IsVisual() bool {
	return t == PhPicture || t == PhDiagram || t == PhChart || t == PhObject
}

type Placeholder struct {
	Index    int             `json:"index" yaml:"index"`
	Type     PlaceholderType `json:"type" yaml:"type"`
	Name     string          `json:"name" yaml:"name"`
	WidthPt  float64         `json:"width_pt" yaml:"width_pt"`
	HeightPt float64         `json:"height_pt" yaml:"height_pt"`
	LeftPt   float64         `json:"left_pt,omitempty" yaml:"left_pt,omitempty"`
	TopPt    float64         `json:"top_pt,omitempty" yaml:"top_pt,omitempty"`
}

func (p Placeholder) Area() float64 { return p.WidthPt * p.HeightPt }

type Layout struct {
	Index        int           `json:"index" yaml:"index"`
	Name         string        `json:"name" yaml:"name"`
	Placeholders []Placeholder `json:"placeholders" yaml:"placeholders"`
}

// Placeholder looks up a placeholder by its index within the layout.
func (l Layout) Placeholder(idx int) (Placeholder, bool) {
	for _, p := range l.Placeholders {
		if p.Index == idx {
			return p, true
		}
	}
	return Placeholder{}, false
}

// Has reports whether any placeholder satisfies pred.
func (l Layout) Has(pred func(Placeholder) bool) bool {
	for _, p := range l.Placeholders {
		if pred(p) {
			return true
		}
	}
	return false
}

// Catalog is the read-only layout set of one template.
type Catalog struct {
	TemplateRef string   `json:"template_ref" yaml:"template_ref"`
	SlideWidth  float64  `json:"slide_width_pt" yaml:"slide_width_pt"`
	SlideHeight float64  `json:"slide_height_pt" yaml:"slide_height_pt"`
	Layouts     []Layout `json:"layouts" yaml:"layouts"`
}

func (c Catalog) Layout(idx int) (Layout, bool) {
	for _, l := range c.Layouts {
		if l.Index == idx {
			return l, true
		}
	}
	return Layout{}, false
}
