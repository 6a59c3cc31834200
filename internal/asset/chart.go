package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"

	"deckflow/internal/deckerr"
)

// Chart is the markup ChartRenderer understands. Quantitative types use
// Labels and Values; structural types use Nodes and Edges.
type Chart struct {
	Type   string    `json:"type"`
	Title  string    `json:"title,omitempty"`
	Labels []string  `json:"labels,omitempty"`
	Values []float64 `json:"values,omitempty"`
	Nodes  []string  `json:"nodes,omitempty"`
	Edges  []Edge    `json:"edges,omitempty"`
}

type Edge struct {
	From  int    `json:"from"`
	To    int    `json:"to"`
	Label string `json:"label,omitempty"`
}

var palette = []string{"#4472C4", "#ED7D31", "#A5A5A5", "#FFC000", "#5B9BD5", "#70AD47", "#264478", "#9E480E"}

// ChartRenderer draws Chart markup with gg. It needs no external tools.
type ChartRenderer struct {
	Width, Height int
}

func NewChartRenderer() *ChartRenderer { return &ChartRenderer{Width: 1200, Height: 800} }

func (r *ChartRenderer) Render(ctx context.Context, markup, outputPath string) error {
	return r.RenderSized(ctx, markup, outputPath, r.Width, r.Height)
}

func (r *ChartRenderer) RenderSized(ctx context.Context, markup, outputPath string, width, height int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := ParseChart(markup)
	if err != nil {
		return err
	}
	if width < 320 {
		width = 320
	}
	if height < 240 {
		height = 240
	}
	dc := gg.NewContext(width, height)
	dc.SetHexColor("#FFFFFF")
	dc.Clear()
	if err := drawChart(dc, c); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return dc.SavePNG(outputPath)
}

func (r *ChartRenderer) Syntax(diagramType string) string {
	switch diagramType {
	case "bar", "line", "pie":
		return fmt.Sprintf(`A JSON object {"type":"%s","title":string,"labels":[string],"values":[number]}; labels and values have equal non-zero length`, diagramType)
	case "cycle":
		return `A JSON object {"type":"cycle","title":string,"nodes":[string]} with at least 3 nodes in loop order`
	case "timeline":
		return `A JSON object {"type":"timeline","title":string,"nodes":[string],"labels":[string]}; nodes are events in order, labels are their dates`
	case "hierarchy":
		return `A JSON object {"type":"hierarchy","title":string,"nodes":[string],"edges":[{"from":int,"to":int}]}; edges go parent to child and form a tree rooted at node 0`
	}
	return fmt.Sprintf(`A JSON object {"type":"%s","title":string,"nodes":[string],"edges":[{"from":int,"to":int,"label":string}]}; edge ends index into nodes`, diagramType)
}

// ParseChart decodes and validates markup. Problems are RenderErrors so the
// resolver can move on to another diagram type.
func ParseChart(markup string) (Chart, error) {
	var c Chart
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(markup))))
	if err := dec.Decode(&c); err != nil {
		return c, &deckerr.RenderError{Message: "markup is not a chart object: " + err.Error()}
	}
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	fail := func(format string, args ...any) (Chart, error) {
		return c, &deckerr.RenderError{Type: c.Type, Message: fmt.Sprintf(format, args...)}
	}
	switch c.Type {
	case "bar", "line", "pie":
		if len(c.Values) == 0 || len(c.Labels) != len(c.Values) {
			return fail("need equal non-zero labels and values, got %d and %d", len(c.Labels), len(c.Values))
		}
		sum := 0.0
		for i, v := range c.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fail("value %d is not finite", i)
			}
			if c.Type == "pie" && v < 0 {
				return fail("pie value %d is negative", i)
			}
			sum += v
		}
		if c.Type == "pie" && sum <= 0 {
			return fail("pie values sum to zero")
		}
	case "flowchart", "hierarchy", "cycle", "timeline":
		if len(c.Nodes) == 0 {
			return fail("no nodes")
		}
		for i, e := range c.Edges {
			if e.From < 0 || e.From >= len(c.Nodes) || e.To < 0 || e.To >= len(c.Nodes) {
				return fail("edge %d references a missing node", i)
			}
		}
		if c.Type == "cycle" && len(c.Nodes) < 3 {
			return fail("a cycle needs at least 3 nodes")
		}
		if c.Type == "hierarchy" {
			if _, err := depths(c); err != nil {
				return fail("%v", err)
			}
		}
	case "":
		return fail("missing type")
	default:
		return fail("unsupported chart type")
	}
	return c, nil
}

func drawChart(dc *gg.Context, c Chart) error {
	w, h := float64(dc.Width()), float64(dc.Height())
	top := 20.0
	if c.Title != "" {
		face, err := Face(h / 18)
		if err != nil {
			return err
		}
		dc.SetFontFace(face)
		dc.SetHexColor("#222222")
		dc.DrawStringAnchored(c.Title, w/2, h/24, 0.5, 0.5)
		top = h / 10
	}
	face, err := Face(h / 34)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	area := box{x: w * 0.06, y: top, w: w * 0.88, h: h - top - h*0.06}
	switch c.Type {
	case "bar":
		drawBars(dc, c, area)
	case "line":
		drawLine(dc, c, area)
	case "pie":
		drawPie(dc, c, area)
	case "flowchart":
		drawFlow(dc, c, area)
	case "hierarchy":
		d, _ := depths(c)
		drawHierarchy(dc, c, d, area)
	case "cycle":
		drawCycle(dc, c, area)
	case "timeline":
		drawTimeline(dc, c, area)
	}
	return nil
}

type box struct{ x, y, w, h float64 }

func (b box) cx() float64 { return b.x + b.w/2 }
func (b box) cy() float64 { return b.y + b.h/2 }

func valueRange(vs []float64) (lo, hi float64) {
	for _, v := range vs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}

func drawAxes(dc *gg.Context, a box, zeroY float64) {
	dc.SetHexColor("#888888")
	dc.SetLineWidth(2)
	dc.DrawLine(a.x, a.y, a.x, a.y+a.h)
	dc.DrawLine(a.x, zeroY, a.x+a.w, zeroY)
	dc.Stroke()
}

func drawBars(dc *gg.Context, c Chart, b box) {
	lo, hi := valueRange(c.Values)
	plot := box{x: b.x, y: b.y, w: b.w, h: b.h - 30}
	scale := plot.h / (hi - lo)
	zeroY := plot.y + hi*scale
	slot := plot.w / float64(len(c.Values))
	for i, v := range c.Values {
		x := plot.x + float64(i)*slot + slot*0.15
		y := zeroY - math.Max(v, 0)*scale
		dc.SetHexColor(palette[i%len(palette)])
		dc.DrawRectangle(x, y, slot*0.7, math.Abs(v)*scale)
		dc.Fill()
		dc.SetHexColor("#333333")
		dc.DrawStringAnchored(c.Labels[i], x+slot*0.35, plot.y+plot.h+15, 0.5, 0.5)
		dc.DrawStringAnchored(formatValue(v), x+slot*0.35, y-10, 0.5, 0.5)
	}
	drawAxes(dc, plot, zeroY)
}

func drawLine(dc *gg.Context, c Chart, b box) {
	lo, hi := valueRange(c.Values)
	plot := box{x: b.x, y: b.y, w: b.w, h: b.h - 30}
	scale := plot.h / (hi - lo)
	zeroY := plot.y + hi*scale
	step := plot.w / float64(max(len(c.Values)-1, 1))
	drawAxes(dc, plot, zeroY)
	dc.SetHexColor(palette[0])
	dc.SetLineWidth(4)
	for i, v := range c.Values {
		x, y := plot.x+float64(i)*step, zeroY-v*scale
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()
	for i, v := range c.Values {
		x, y := plot.x+float64(i)*step, zeroY-v*scale
		dc.SetHexColor(palette[0])
		dc.DrawCircle(x, y, 6)
		dc.Fill()
		dc.SetHexColor("#333333")
		dc.DrawStringAnchored(c.Labels[i], x, plot.y+plot.h+15, 0.5, 0.5)
	}
}

func drawPie(dc *gg.Context, c Chart, b box) {
	sum := 0.0
	for _, v := range c.Values {
		sum += v
	}
	r := math.Min(b.w*0.6, b.h) / 2 * 0.9
	cx, cy := b.x+b.w*0.35, b.cy()
	angle := -math.Pi / 2
	for i, v := range c.Values {
		sweep := v / sum * 2 * math.Pi
		dc.SetHexColor(palette[i%len(palette)])
		dc.MoveTo(cx, cy)
		dc.DrawArc(cx, cy, r, angle, angle+sweep)
		dc.ClosePath()
		dc.Fill()
		angle += sweep
		ly := b.y + float64(i+1)*b.h/float64(len(c.Values)+1)
		dc.DrawRectangle(b.x+b.w*0.72, ly-8, 16, 16)
		dc.Fill()
		dc.SetHexColor("#333333")
		dc.DrawStringAnchored(fmt.Sprintf("%s (%.0f%%)", c.Labels[i], v/sum*100), b.x+b.w*0.72+26, ly, 0, 0.5)
	}
}

func drawNode(dc *gg.Context, label string, x, y, w, h float64, color string) {
	dc.SetHexColor(color)
	dc.DrawRoundedRectangle(x-w/2, y-h/2, w, h, h/5)
	dc.Fill()
	dc.SetHexColor("#FFFFFF")
	dc.DrawStringWrapped(label, x, y, 0.5, 0.5, w*0.9, 1.2, gg.AlignCenter)
}

func drawArrow(dc *gg.Context, x1, y1, x2, y2 float64) {
	dc.SetHexColor("#555555")
	dc.SetLineWidth(3)
	dc.DrawLine(x1, y1, x2, y2)
	dc.Stroke()
	a := math.Atan2(y2-y1, x2-x1)
	const head = 14.0
	dc.MoveTo(x2, y2)
	dc.LineTo(x2-head*math.Cos(a-0.4), y2-head*math.Sin(a-0.4))
	dc.LineTo(x2-head*math.Cos(a+0.4), y2-head*math.Sin(a+0.4))
	dc.ClosePath()
	dc.Fill()
}

// edgesOrChain falls back to a simple chain when no edges were given.
func edgesOrChain(c Chart) []Edge {
	if len(c.Edges) > 0 {
		return c.Edges
	}
	out := make([]Edge, 0, len(c.Nodes))
	for i := 0; i+1 < len(c.Nodes); i++ {
		out = append(out, Edge{From: i, To: i + 1})
	}
	return out
}

func drawFlow(dc *gg.Context, c Chart, b box) {
	n := len(c.Nodes)
	cols := min(n, 4)
	rows := (n + cols - 1) / cols
	cw, rh := b.w/float64(cols), b.h/float64(rows)
	nw, nh := cw*0.7, math.Min(rh*0.5, 90)
	pos := make([][2]float64, n)
	for i := range c.Nodes {
		r, col := i/cols, i%cols
		if r%2 == 1 {
			col = cols - 1 - col
		}
		pos[i] = [2]float64{b.x + cw*(float64(col)+0.5), b.y + rh*(float64(r)+0.5)}
	}
	for _, e := range edgesOrChain(c) {
		p, q := pos[e.From], pos[e.To]
		x1, y1, x2, y2 := clip(p, q, nw, nh)
		drawArrow(dc, x1, y1, x2, y2)
		if e.Label != "" {
			dc.SetHexColor("#333333")
			dc.DrawStringAnchored(e.Label, (x1+x2)/2, (y1+y2)/2-12, 0.5, 0.5)
		}
	}
	for i, label := range c.Nodes {
		drawNode(dc, label, pos[i][0], pos[i][1], nw, nh, palette[0])
	}
}

// clip shortens the segment p→q so it starts and ends at the node borders.
func clip(p, q [2]float64, w, h float64) (x1, y1, x2, y2 float64) {
	dx, dy := q[0]-p[0], q[1]-p[1]
	d := math.Hypot(dx, dy)
	if d == 0 {
		return p[0], p[1], q[0], q[1]
	}
	ux, uy := dx/d, dy/d
	t := math.Min(w/2/math.Max(math.Abs(ux), 1e-9), h/2/math.Max(math.Abs(uy), 1e-9))
	t = math.Min(t, d/2)
	return p[0] + ux*t, p[1] + uy*t, q[0] - ux*t, q[1] - uy*t
}

// depths assigns every hierarchy node its distance from node 0 and rejects
// anything that is not a tree.
func depths(c Chart) ([]int, error) {
	parent := make([]int, len(c.Nodes))
	for i := range parent {
		parent[i] = -1
	}
	children := make([][]int, len(c.Nodes))
	for _, e := range c.Edges {
		if e.To == 0 {
			return nil, fmt.Errorf("node 0 is the root and cannot have a parent")
		}
		if parent[e.To] >= 0 {
			return nil, fmt.Errorf("node %d has more than one parent", e.To)
		}
		parent[e.To] = e.From
		children[e.From] = append(children[e.From], e.To)
	}
	d := make([]int, len(c.Nodes))
	for i := range d {
		d[i] = -1
	}
	d[0] = 0
	queue := []int{0}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, ch := range children[n] {
			d[ch] = d[n] + 1
			queue = append(queue, ch)
		}
	}
	for i, v := range d {
		if v < 0 {
			return nil, fmt.Errorf("node %d is not reachable from the root", i)
		}
	}
	return d, nil
}

func drawHierarchy(dc *gg.Context, c Chart, d []int, b box) {
	levels := map[int][]int{}
	deepest := 0
	for i, v := range d {
		levels[v] = append(levels[v], i)
		deepest = max(deepest, v)
	}
	rh := b.h / float64(deepest+1)
	pos := make([][2]float64, len(c.Nodes))
	widest := 1
	for lvl := 0; lvl <= deepest; lvl++ {
		ids := levels[lvl]
		widest = max(widest, len(ids))
		cw := b.w / float64(len(ids))
		for j, id := range ids {
			pos[id] = [2]float64{b.x + cw*(float64(j)+0.5), b.y + rh*(float64(lvl)+0.5)}
		}
	}
	nw, nh := b.w/float64(widest)*0.8, math.Min(rh*0.5, 80)
	dc.SetHexColor("#777777")
	dc.SetLineWidth(2)
	for _, e := range c.Edges {
		p, q := pos[e.From], pos[e.To]
		dc.DrawLine(p[0], p[1]+nh/2, q[0], q[1]-nh/2)
		dc.Stroke()
	}
	for i, label := range c.Nodes {
		drawNode(dc, label, pos[i][0], pos[i][1], nw, nh, palette[min(d[i], len(palette)-1)])
	}
}

func drawCycle(dc *gg.Context, c Chart, b box) {
	n := len(c.Nodes)
	r := math.Min(b.w, b.h) / 2 * 0.72
	nw, nh := math.Min(r*0.9, b.w/4), math.Min(r*0.35, 70)
	pos := make([][2]float64, n)
	for i := range c.Nodes {
		a := -math.Pi/2 + float64(i)*2*math.Pi/float64(n)
		pos[i] = [2]float64{b.cx() + r*math.Cos(a), b.cy() + r*math.Sin(a)}
	}
	for i := range c.Nodes {
		x1, y1, x2, y2 := clip(pos[i], pos[(i+1)%n], nw, nh)
		drawArrow(dc, x1, y1, x2, y2)
	}
	for i, label := range c.Nodes {
		drawNode(dc, label, pos[i][0], pos[i][1], nw, nh, palette[i%len(palette)])
	}
}

func drawTimeline(dc *gg.Context, c Chart, b box) {
	n := len(c.Nodes)
	y := b.cy()
	dc.SetHexColor("#555555")
	dc.SetLineWidth(4)
	dc.DrawLine(b.x, y, b.x+b.w, y)
	dc.Stroke()
	step := b.w / float64(n)
	for i, label := range c.Nodes {
		x := b.x + step*(float64(i)+0.5)
		dc.SetHexColor(palette[i%len(palette)])
		dc.DrawCircle(x, y, 10)
		dc.Fill()
		dc.SetHexColor("#333333")
		ty := y - b.h/6
		if i%2 == 1 {
			ty = y + b.h/6
		}
		dc.DrawStringWrapped(label, x, ty, 0.5, 0.5, step*0.95, 1.2, gg.AlignCenter)
		if i < len(c.Labels) {
			dc.DrawStringAnchored(c.Labels[i], x, y+(y-ty)/3, 0.5, 0.5)
		}
	}
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
