package assemble

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"

	"deckflow/internal/types/deck"
)

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; background: #eee; margin: 0; padding: 2em; }
section.slide { background: #fff; width: %.0fpx; min-height: %.0fpx; margin: 0 auto 2em; padding: 2em; box-sizing: border-box; box-shadow: 0 2px 6px rgba(0,0,0,.2); }
section.slide img { max-width: 100%%; max-height: 60vh; }
.flag { display: inline-block; font-size: 12px; padding: 2px 6px; margin-right: 4px; border-radius: 3px; background: #c0392b; color: #fff; }
.notes { color: #666; font-size: 13px; border-top: 1px solid #ddd; margin-top: 1em; padding-top: .5em; }
</style>
</head>
<body>
`

// RenderHTML renders one <section> per slide. Slide text goes through
// goldmark as Markdown; assets refers to the store-relative asset paths.
func RenderHTML(m Manifest, assets map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	w, h := m.Catalog.SlideWidth, m.Catalog.SlideHeight
	if w <= 0 || h <= 0 {
		w, h = 960, 540
	}
	fmt.Fprintf(&buf, pageHead, html.EscapeString(m.Outline.Title), w, h)

	n := 0
	for _, sec := range m.Sections {
		if sec.Partial {
			fmt.Fprintf(&buf, "<!-- section %d incomplete: %s -->\n", sec.Section.Index, html.EscapeString(sec.Error))
		}
		for _, s := range sec.Slides {
			n++
			if err := writeSlide(&buf, n, sec.Section, s, assets); err != nil {
				return nil, err
			}
		}
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

func writeSlide(buf *bytes.Buffer, n int, sec deck.Section, s deck.AssembledSlide, assets map[string]string) error {
	fmt.Fprintf(buf, "<section class=\"slide\" id=\"slide-%d\" data-section=\"%d\" data-layout=\"%s\">\n",
		n, sec.Index, html.EscapeString(s.Layout.Name))
	for _, f := range s.Flags {
		fmt.Fprintf(buf, "<span class=\"flag\">%s</span>", html.EscapeString(string(f)))
	}
	md := SlideMarkdown(s, assets)
	if err := goldmark.Convert([]byte(md), buf); err != nil {
		return fmt.Errorf("render slide %d: %w", n, err)
	}
	if notes := strings.TrimSpace(s.Content.Notes); notes != "" {
		fmt.Fprintf(buf, "<div class=\"notes\">%s</div>\n", html.EscapeString(notes))
	}
	buf.WriteString("</section>\n")
	return nil
}

// SlideMarkdown renders the mapped values in placeholder order. Empty
// values are skipped.
func SlideMarkdown(s deck.AssembledSlide, assets map[string]string) string {
	var b strings.Builder
	for _, idx := range s.Mapping.Indices() {
		v := s.Mapping.Values[idx]
		if v.IsEmpty() {
			continue
		}
		switch {
		case v.Kind == deck.ValueAsset:
			src := assets[v.Path]
			if src == "" {
				src = v.Path
			}
			fmt.Fprintf(&b, "![%s %d](%s)\n\n", v.Role, v.Ref, src)
		case v.Role == deck.RoleTitle:
			fmt.Fprintf(&b, "## %s\n\n", oneLine(v.Text))
		case v.Kind == deck.ValueList:
			for _, it := range v.Items {
				fmt.Fprintf(&b, "- %s\n", oneLine(it))
			}
			b.WriteString("\n")
		default:
			b.WriteString(v.Text)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
