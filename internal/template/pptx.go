package template

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"deckflow/internal/types/deck"
)

// EMUPerPoint converts OOXML English Metric Units to points.
const EMUPerPoint = 12700.0

var layoutPartRe = regexp.MustCompile(`^ppt/slideLayouts/slideLayout(\d+)\.xml$`)

type xPresentation struct {
	SldSz struct {
		Cx int64 `xml:"cx,attr"`
		Cy int64 `xml:"cy,attr"`
	} `xml:"sldSz"`
}

type xPart struct {
	CSld struct {
		Name   string `xml:"name,attr"`
		SpTree struct {
			Shapes []xShape `xml:"sp"`
			Pics   []xShape `xml:"pic"`
			Frames []xShape `xml:"graphicFrame"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

type xNonVisual struct {
	CNvPr struct {
		Name string `xml:"name,attr"`
	} `xml:"cNvPr"`
	NvPr struct {
		Ph *struct {
			Type string `xml:"type,attr"`
			Idx  string `xml:"idx,attr"`
		} `xml:"ph"`
	} `xml:"nvPr"`
}

type xXfrm struct {
	Off struct {
		X int64 `xml:"x,attr"`
		Y int64 `xml:"y,attr"`
	} `xml:"off"`
	Ext struct {
		Cx int64 `xml:"cx,attr"`
		Cy int64 `xml:"cy,attr"`
	} `xml:"ext"`
}

type xShape struct {
	NvSpPr           xNonVisual `xml:"nvSpPr"`
	NvPicPr          xNonVisual `xml:"nvPicPr"`
	NvGraphicFramePr xNonVisual `xml:"nvGraphicFramePr"`
	SpPrXfrm         *xXfrm     `xml:"spPr>xfrm"`
	GraphicFrameXfrm *xXfrm     `xml:"xfrm"`
}

func (s xShape) nonVisual() xNonVisual {
	switch {
	case s.NvSpPr.NvPr.Ph != nil:
		return s.NvSpPr
	case s.NvPicPr.NvPr.Ph != nil:
		return s.NvPicPr
	}
	return s.NvGraphicFramePr
}

func (s xShape) xfrm() *xXfrm {
	if s.SpPrXfrm != nil {
		return s.SpPrXfrm
	}
	return s.GraphicFrameXfrm
}

type rawPlaceholder struct {
	idx  int
	typ  string
	name string
	xfrm *xXfrm
}

func (p xPart) placeholders() []rawPlaceholder {
	var all []xShape
	all = append(all, p.CSld.SpTree.Shapes...)
	all = append(all, p.CSld.SpTree.Pics...)
	all = append(all, p.CSld.SpTree.Frames...)
	out := make([]rawPlaceholder, 0, len(all))
	for _, s := range all {
		nv := s.nonVisual()
		if nv.NvPr.Ph == nil {
			continue
		}
		typ := nv.NvPr.Ph.Type
		if typ == "" {
			typ = "obj"
		}
		idx, _ := strconv.Atoi(nv.NvPr.Ph.Idx)
		out = append(out, rawPlaceholder{idx: idx, typ: typ, name: nv.CNvPr.Name, xfrm: s.xfrm()})
	}
	return out
}

// masterKey maps a layout placeholder type to the master placeholder it
// inherits geometry from.
func masterKey(typ string) string {
	switch typ {
	case "ctrTitle", "title":
		return "title"
	case "dt", "ftr", "sldNum":
		return typ
	}
	return "body"
}

// ReadPPTX extracts the layout catalog of a .pptx/.potx document. Layouts are
// ordered by their part number; a layout placeholder without its own xfrm
// inherits the slide master's geometry for the same role.
func ReadPPTX(r io.ReaderAt, size int64, ref string) (deck.Catalog, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return deck.Catalog{}, fmt.Errorf("open pptx %s: %w", ref, err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	cat := deck.Catalog{TemplateRef: ref}
	if f, ok := files["ppt/presentation.xml"]; ok {
		var pres xPresentation
		if err := decodePart(f, &pres); err != nil {
			return deck.Catalog{}, err
		}
		cat.SlideWidth = float64(pres.SldSz.Cx) / EMUPerPoint
		cat.SlideHeight = float64(pres.SldSz.Cy) / EMUPerPoint
	}

	master := map[string]*xXfrm{}
	var masterNames []string
	for name := range files {
		if strings.HasPrefix(name, "ppt/slideMasters/") && path.Ext(name) == ".xml" {
			masterNames = append(masterNames, name)
		}
	}
	sort.Strings(masterNames)
	if len(masterNames) > 0 {
		var m xPart
		if err := decodePart(files[masterNames[0]], &m); err != nil {
			return deck.Catalog{}, err
		}
		for _, ph := range m.placeholders() {
			if ph.xfrm != nil {
				if _, seen := master[masterKey(ph.typ)]; !seen {
					master[masterKey(ph.typ)] = ph.xfrm
				}
			}
		}
	}

	type numbered struct {
		n    int
		file *zip.File
	}
	var parts []numbered
	for name, f := range files {
		if m := layoutPartRe.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			parts = append(parts, numbered{n: n, file: f})
		}
	}
	if len(parts) == 0 {
		return deck.Catalog{}, fmt.Errorf("pptx %s has no slide layouts", ref)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })

	for i, p := range parts {
		var part xPart
		if err := decodePart(p.file, &part); err != nil {
			return deck.Catalog{}, err
		}
		l := deck.Layout{Index: i, Name: part.CSld.Name}
		for _, ph := range part.placeholders() {
			x := ph.xfrm
			if x == nil {
				x = master[masterKey(ph.typ)]
			}
			pl := deck.Placeholder{Index: ph.idx, Type: deck.ParsePlaceholderType(ph.typ), Name: ph.name}
			if x != nil {
				pl.LeftPt = float64(x.Off.X) / EMUPerPoint
				pl.TopPt = float64(x.Off.Y) / EMUPerPoint
				pl.WidthPt = float64(x.Ext.Cx) / EMUPerPoint
				pl.HeightPt = float64(x.Ext.Cy) / EMUPerPoint
			}
			l.Placeholders = append(l.Placeholders, pl)
		}
		sort.SliceStable(l.Placeholders, func(a, b int) bool { return l.Placeholders[a].Index < l.Placeholders[b].Index })
		cat.Layouts = append(cat.Layouts, l)
	}
	return cat, Normalize(&cat)
}

func decodePart(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", f.Name, err)
	}
	return nil
}
