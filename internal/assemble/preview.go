package assemble

import (
	"bytes"
	"image"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"deckflow/internal/asset"
	"deckflow/internal/fit"
	"deckflow/internal/types/deck"
)

// previewScale maps one point to pixels.
const previewScale = 1.0

// RenderPreview draws the slide from placeholder geometry: text at the fit
// engine's font sizes, assets scaled into their boxes, empty placeholders
// as dashed outlines.
func RenderPreview(cat deck.Catalog, s deck.AssembledSlide, fonts fit.Fonts) ([]byte, error) {
	sw, sh := cat.SlideWidth, cat.SlideHeight
	if sw <= 0 || sh <= 0 {
		sw, sh = 960, 540
	}
	dc := gg.NewContext(int(sw*previewScale), int(sh*previewScale))
	dc.SetHexColor("#FFFFFF")
	dc.Clear()

	for _, p := range s.Layout.Placeholders {
		x, y := p.LeftPt*previewScale, p.TopPt*previewScale
		w, h := p.WidthPt*previewScale, p.HeightPt*previewScale
		v, ok := s.Mapping.Values[p.Index]
		if !ok || v.IsEmpty() {
			dc.SetHexColor("#DDDDDD")
			dc.SetDash(4, 4)
			dc.SetLineWidth(1)
			dc.DrawRectangle(x, y, w, h)
			dc.Stroke()
			dc.SetDash()
			continue
		}
		switch v.Kind {
		case deck.ValueAsset:
			if err := drawAsset(dc, v.Path, x, y, w, h); err != nil {
				dc.SetHexColor("#C0392B")
				dc.DrawRectangle(x, y, w, h)
				dc.Stroke()
			}
		default:
			size := fonts.For(p) * previewScale
			face, err := asset.Face(size)
			if err != nil {
				return nil, err
			}
			dc.SetFontFace(face)
			dc.SetHexColor("#222222")
			text := v.Text
			if v.Kind == deck.ValueList {
				text = "• " + strings.Join(v.Items, "\n• ")
			}
			dc.Push()
			dc.DrawRectangle(x, y, w, h)
			dc.Clip()
			dc.DrawStringWrapped(text, x+2, y+2, 0, 0, w-4, 1.2, gg.AlignLeft)
			dc.ResetClip()
			dc.Pop()
		}
	}

	if len(s.Flags) > 0 {
		face, err := asset.Face(12)
		if err != nil {
			return nil, err
		}
		dc.SetFontFace(face)
		labels := make([]string, len(s.Flags))
		for i, f := range s.Flags {
			labels[i] = string(f)
		}
		dc.SetHexColor("#C0392B")
		dc.DrawStringAnchored(strings.Join(labels, " "), sw*previewScale-8, sh*previewScale-8, 1, 0)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawAsset(dc *gg.Context, path string, x, y, w, h float64) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	src, err := asset.Decode(raw)
	if err != nil {
		return err
	}
	sb := src.Bounds()
	k := min(w/float64(sb.Dx()), h/float64(sb.Dy()))
	dw, dh := max(int(float64(sb.Dx())*k), 1), max(int(float64(sb.Dy())*k), 1)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	dc.DrawImage(dst, int(x+(w-float64(dw))/2), int(y+(h-float64(dh))/2))
	return nil
}
