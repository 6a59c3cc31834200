package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// NewFakeClient answers every pipeline phase deterministically from its
// input, so a full run works offline. Image searches still need a search
// backend; diagrams are produced as chart JSON, or mermaid source when the
// input syntax asks for it.
func NewFakeClient() *ScriptedClient {
	s := NewScriptedClient()
	s.On("outline", fakeResponder(fakeOutline))
	s.On("content", fakeResponder(fakeContent))
	s.On("layout", fakeResponder(fakeLayout))
	s.On("mapping", fakeResponder(fakeMapping))
	s.On("refit", fakeResponder(fakeRefit))
	s.On("diagram", fakeResponder(fakeDiagram))
	s.On("image", fakeResponder(fakeImage))
	return s
}

// fakeResponder round-trips the input through JSON into In.
func fakeResponder[In any](fn func(In) any) Responder {
	return func(_ context.Context, _ string, input any) (json.RawMessage, error) {
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, err
		}
		var in In
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("fake client: %w", err)
		}
		return json.Marshal(fn(in))
	}
}

type fakeRequest struct {
	Topic           string `json:"topic"`
	Audience        string `json:"audience"`
	DurationMinutes int    `json:"duration_minutes"`
	Purpose         string `json:"purpose"`
}

type fakeSection struct {
	Index           int      `json:"index"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	KeyPoints       []string `json:"key_points"`
	EstimatedSlides int      `json:"estimated_slides"`
	Kind            string   `json:"section_type"`
}

func fakeOutline(in struct {
	Request fakeRequest `json:"request"`
}) any {
	r := in.Request
	chapters := min(max(r.DurationMinutes/5, 1), 4)
	secs := []fakeSection{
		{Title: r.Topic, Description: "Opening slide", EstimatedSlides: 1, Kind: "title"},
		{Title: "Agenda", Description: "What we will cover", EstimatedSlides: 1, Kind: "agenda"},
	}
	for i := 0; i < chapters; i++ {
		secs = append(secs, fakeSection{
			Title:       fmt.Sprintf("%s: part %d", r.Topic, i+1),
			Description: fmt.Sprintf("Part %d of %s for %s", i+1, r.Topic, r.Audience),
			KeyPoints: []string{
				fmt.Sprintf("Why part %d matters", i+1),
				fmt.Sprintf("How part %d works", i+1),
				fmt.Sprintf("What to do next in part %d", i+1),
			},
			EstimatedSlides: 2,
			Kind:            "chapter",
		})
	}
	secs = append(secs, fakeSection{Title: "Summary", Description: "Key takeaways", KeyPoints: []string{r.Purpose}, EstimatedSlides: 1, Kind: "conclusion"})
	for i := range secs {
		secs[i].Index = i
	}
	return map[string]any{
		"title":           r.Topic,
		"target_audience": r.Audience,
		"overall_message": fmt.Sprintf("%s, explained for %s.", r.Topic, r.Audience),
		"sections":        secs,
	}
}

func fakeContent(in struct {
	Request fakeRequest `json:"request"`
	Section fakeSection `json:"section"`
}) any {
	sec := in.Section
	n := max(sec.EstimatedSlides, 1)
	points := sec.KeyPoints
	if len(points) == 0 {
		points = []string{sec.Description}
	}
	var slides []map[string]any
	for i := 0; i < n; i++ {
		slide := map[string]any{
			"title":    sec.Title,
			"notes":    sec.Description,
			"keywords": strings.Fields(strings.ToLower(sec.Title)),
		}
		switch {
		case sec.Kind == "title":
			slide["content"] = in.Request.Audience
		case i == 0:
			slide["content"] = sec.Description
		default:
			slide["title"] = fmt.Sprintf("%s (%d)", sec.Title, i+1)
			slide["content"] = points
		}
		if sec.Kind == "chapter" && i == 1 {
			slide["diagrams_needed"] = []map[string]string{{
				"description": "Process flow of " + sec.Title,
				"data":        strings.Join(points, ", "),
			}}
		}
		slides = append(slides, slide)
	}
	return map[string]any{"slides": slides}
}

func fakeLayout(in struct {
	Slides []struct {
		AllowedLayouts []int `json:"allowed_layouts"`
		Images         int   `json:"images"`
		Diagrams       int   `json:"diagrams"`
	} `json:"slides"`
	Layouts []struct {
		Index int    `json:"index"`
		Class string `json:"class"`
	} `json:"layouts"`
}) any {
	class := map[int]string{}
	for _, l := range in.Layouts {
		class[l.Index] = l.Class
	}
	out := make([]int, len(in.Slides))
	for i, s := range in.Slides {
		if len(s.AllowedLayouts) == 0 {
			continue
		}
		out[i] = s.AllowedLayouts[0]
		if s.Images+s.Diagrams == 0 {
			continue
		}
		for _, idx := range s.AllowedLayouts {
			if class[idx] == "visual" {
				out[i] = idx
				break
			}
		}
	}
	return map[string]any{"layout_indexes": out}
}

func fakeMapping(in struct {
	Slide struct {
		Title   string          `json:"title"`
		Content json.RawMessage `json:"content"`
	} `json:"slide"`
	Assets       []string `json:"assets"`
	Placeholders []struct {
		Index int    `json:"index"`
		Type  string `json:"type"`
	} `json:"placeholders"`
}) any {
	out := map[string]any{}
	used := map[int]bool{}
	take := func(types ...string) (int, bool) {
		for _, t := range types {
			for _, p := range in.Placeholders {
				if p.Type == t && !used[p.Index] {
					used[p.Index] = true
					return p.Index, true
				}
			}
		}
		return 0, false
	}
	if strings.TrimSpace(in.Slide.Title) != "" {
		if idx, ok := take("center_title", "title"); ok {
			out[strconv.Itoa(idx)] = in.Slide.Title
		}
	}
	var content any
	if len(in.Slide.Content) > 0 && json.Unmarshal(in.Slide.Content, &content) == nil && content != "" && content != nil {
		if idx, ok := take("body", "subtitle", "object"); ok {
			out[strconv.Itoa(idx)] = content
		}
	}
	for _, a := range in.Assets {
		tok, _, _ := strings.Cut(a, " = ")
		if idx, ok := take("picture", "diagram", "chart", "object"); ok {
			out[strconv.Itoa(idx)] = strings.TrimSpace(tok)
		}
	}
	return map[string]any{"mappings": out}
}

func fakeRefit(in struct {
	Corrections []struct {
		Placeholder  int    `json:"placeholder"`
		Current      string `json:"current"`
		List         bool   `json:"list"`
		CharsPerLine int    `json:"chars_per_line"`
		MaxLines     int    `json:"max_lines"`
		MaxChars     int    `json:"max_chars"`
	} `json:"corrections"`
}) any {
	out := map[string]any{}
	for _, c := range in.Corrections {
		key := strconv.Itoa(c.Placeholder)
		if !c.List {
			out[key] = shorten(c.Current, c.MaxChars)
			continue
		}
		items := []string{}
		for _, line := range strings.Split(c.Current, "\n") {
			if len(items) >= c.MaxLines {
				break
			}
			if line = strings.TrimSpace(line); line != "" {
				items = append(items, shorten(line, c.CharsPerLine))
			}
		}
		out[key] = items
	}
	return map[string]any{"placeholders": out}
}

// shorten cuts s to at most n runes, at a word boundary when one exists.
func shorten(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := string([]rune(s)[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

func fakeDiagram(in struct {
	DiagramType string `json:"diagram_type"`
	Syntax      string `json:"syntax"`
	Request     struct {
		Description string `json:"description"`
		Data        string `json:"data"`
	} `json:"request"`
}) any {
	labels := splitData(in.Request.Data)
	if strings.Contains(strings.ToLower(in.Syntax), "mermaid") {
		return map[string]any{"markup": fakeMermaid(in.DiagramType, labels)}
	}
	chart := map[string]any{"type": in.DiagramType, "title": shorten(in.Request.Description, 40)}
	switch in.DiagramType {
	case "bar", "line", "pie":
		values := make([]float64, len(labels))
		for i := range values {
			values[i] = float64(len(labels) - i)
		}
		chart["labels"], chart["values"] = labels, values
	case "timeline":
		dates := make([]string, len(labels))
		for i := range dates {
			dates[i] = fmt.Sprintf("Step %d", i+1)
		}
		chart["nodes"], chart["labels"] = labels, dates
	case "hierarchy":
		nodes := append([]string{shorten(in.Request.Description, 24)}, labels...)
		edges := make([]map[string]int, len(labels))
		for i := range labels {
			edges[i] = map[string]int{"from": 0, "to": i + 1}
		}
		chart["nodes"], chart["edges"] = nodes, edges
	default:
		chart["nodes"] = labels
	}
	return map[string]any{"markup": chart}
}

func fakeMermaid(typ string, labels []string) string {
	var b strings.Builder
	switch typ {
	case "pie":
		b.WriteString("pie\n")
		for i, l := range labels {
			fmt.Fprintf(&b, "  %q : %d\n", l, len(labels)-i)
		}
	case "timeline":
		b.WriteString("timeline\n")
		for i, l := range labels {
			fmt.Fprintf(&b, "  Step %d : %s\n", i+1, l)
		}
	default:
		b.WriteString("flowchart LR\n")
		for i := range labels {
			fmt.Fprintf(&b, "  n%d[%q]\n", i, labels[i])
			if i > 0 {
				fmt.Fprintf(&b, "  n%d --> n%d\n", i-1, i)
			}
		}
	}
	return b.String()
}

func splitData(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, shorten(part, 24))
		}
	}
	if len(out) < 3 {
		out = append(out, "Plan", "Build", "Review")[:max(len(out), 3)]
	}
	return out
}

func fakeImage(in struct {
	Request struct {
		Description string `json:"description"`
	} `json:"request"`
	PreviousQueries []string `json:"previous_queries"`
}) any {
	words := strings.Fields(in.Request.Description)
	// each retry drops a word to broaden the query
	keep := max(len(words)-len(in.PreviousQueries), 1)
	if len(words) == 0 {
		words = []string{"presentation"}
	}
	return map[string]any{"query": strings.Join(words[:min(keep, len(words))], " "), "description": in.Request.Description}
}
