package asset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"deckflow/internal/deckerr"
	"deckflow/internal/llm"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/llmtool"
	"deckflow/internal/logger"
	"deckflow/internal/types/deck"
)

const (
	StageDiagram = "diagram"
	StageImage   = "image"
)

// ErrExhausted means every diagram type or image attempt failed. The caller
// leaves the placeholder empty and flags the slide.
var ErrExhausted = errors.New("asset alternatives exhausted")

// Fetcher downloads a search hit.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

var diagramPromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Write the markup for one slide diagram of the required type.",
	Background: "The markup is rendered directly into an image placed on a presentation slide.",
	OutputFields: []llmtool.PromptField{
		{Name: "markup", Type: "string|object", Required: true, Description: "Diagram markup in the syntax given by input.syntax."},
	},
	Constraints: []string{
		"Use exactly the diagram type in input.diagram_type.",
		"Keep labels short enough to read on a slide (at most 5 words).",
		"Use no more than 8 nodes or data points.",
	},
	Rules: []string{
		"Derive every label and number from input.request; do not add facts.",
	},
}, llmtool.PresetStrictJSON(), llmtool.PresetNoInvent())

var imagePromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Write an image search query for one slide picture.",
	Background: "The query is sent to a web image search; the first usable hit is placed on the slide.",
	OutputFields: []llmtool.PromptField{
		{Name: "query", Type: "string", Required: true, Description: "2 to 6 search keywords, in English."},
		{Name: "description", Type: "string", Required: false, Description: "What the picture should show."},
	},
	Rules: []string{
		"When input.previous_queries is non-empty, return a broader query than all of them.",
	},
}, llmtool.PresetStrictJSON())

type diagramOut struct {
	Markup json.RawMessage `json:"markup"`
}

func (d *diagramOut) Validate() error {
	if len(strings.TrimSpace(string(d.Markup))) == 0 || string(d.Markup) == "null" {
		return fmt.Errorf("markup is empty")
	}
	return nil
}

// Text returns string markup unquoted and object markup as JSON text.
func (d diagramOut) Text() string {
	var s string
	if err := json.Unmarshal(d.Markup, &s); err == nil {
		return s
	}
	return string(d.Markup)
}

type imageOut struct {
	Query       string `json:"query"`
	Description string `json:"description"`
}

func (o *imageOut) Validate() error {
	o.Query = strings.TrimSpace(o.Query)
	if o.Query == "" {
		return fmt.Errorf("query is empty")
	}
	return nil
}

// Resolver produces asset files for visual placeholders. Failures never
// escape as section errors: the caller gets ErrExhausted and flags the slide.
type Resolver struct {
	LLM      llmclient.LLMClient
	Renderer Renderer
	Search   Searcher
	Fetch    Fetcher
	Claims   TypeClaims
	// DiagramTypes is the fallback catalog; DefaultDiagramTypes when empty.
	DiagramTypes  []string
	ImageRetries  int
	RenderTimeout time.Duration
	// Limiter throttles image searches.
	Limiter llm.Limiter
	Log     *logger.Logger
}

// DiagramResult reports what ResolveDiagram tried.
type DiagramResult struct {
	Type  string
	Tried []string
}

func (r *Resolver) catalog() []string {
	if len(r.DiagramTypes) > 0 {
		return r.DiagramTypes
	}
	return DefaultDiagramTypes
}

// ResolveDiagram renders req into outPath. Each type in Order is tried at
// most once; only a successful render is recorded against the slot.
func (r *Resolver) ResolveDiagram(ctx context.Context, key deck.SlideKey, req deck.DiagramRequest, p deck.Placeholder, outPath string) (DiagramResult, error) {
	log := logger.OrNop(r.Log).With("slide", key.String(), "placeholder", p.Index)
	slot := deck.AssetSlot{Slide: key, Placeholder: p.Index}
	var used map[string]bool
	if r.Claims != nil {
		used = r.Claims.UsedDiagramTypes(slot)
	}

	var res DiagramResult
	var errs []error
	for _, typ := range Order(req, r.catalog(), used) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Tried = append(res.Tried, typ)
		err := r.tryDiagram(ctx, typ, req, p, outPath)
		if err == nil {
			res.Type = typ
			if r.Claims != nil {
				r.Claims.RecordDiagramType(slot, typ)
			}
			log.Debug("diagram rendered", "type", typ, "attempts", len(res.Tried))
			return res, nil
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return res, err
		}
		log.Warn("diagram type failed", "type", typ, "error", err)
		errs = append(errs, err)
	}
	return res, fmt.Errorf("%w: diagram types %s: %w", ErrExhausted, strings.Join(res.Tried, ","), errors.Join(errs...))
}

func (r *Resolver) tryDiagram(ctx context.Context, typ string, req deck.DiagramRequest, p deck.Placeholder, outPath string) error {
	syntax := "Diagram markup"
	if g, ok := r.Renderer.(SyntaxGuide); ok {
		syntax = g.Syntax(typ)
	}
	out, _, err := llmtool.Invoke[diagramOut](ctx, r.LLM, llmtool.Call{
		Stage: StageDiagram,
		Spec:  diagramPromptSpec,
		Input: map[string]any{
			"diagram_type": typ,
			"syntax":       syntax,
			"request":      req,
		},
	})
	if err != nil {
		return err
	}

	rctx := ctx
	if r.RenderTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, r.RenderTimeout)
		defer cancel()
	}
	markup := out.Text()
	if sr, ok := r.Renderer.(SizedRenderer); ok {
		w, h := pixelSize(p)
		err = sr.RenderSized(rctx, markup, outPath, w, h)
	} else {
		err = r.Renderer.Render(rctx, markup, outPath)
	}
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return &deckerr.RenderError{Type: typ, Message: "render timed out"}
	}
	return err
}

// pixelSize renders at twice the placeholder's point size.
func pixelSize(p deck.Placeholder) (int, int) {
	w, h := int(p.WidthPt*2), int(p.HeightPt*2)
	if w <= 0 || h <= 0 {
		return 1200, 800
	}
	return w, h
}

// ResolveImage searches for req and saves the first decodable hit, padded to
// the placeholder's aspect ratio, as a PNG at outPath. Empty searches are
// retried with a fresh query up to ImageRetries times.
func (r *Resolver) ResolveImage(ctx context.Context, key deck.SlideKey, req deck.ImageRequest, p deck.Placeholder, outPath string) error {
	log := logger.OrNop(r.Log).With("slide", key.String(), "placeholder", p.Index)
	if r.Search == nil || r.Fetch == nil {
		return fmt.Errorf("%w: no image search configured", ErrExhausted)
	}
	attempts := max(r.ImageRetries, 1)
	var tried []string
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		query := strings.TrimSpace(req.Query)
		if query == "" || attempt > 1 {
			out, _, err := llmtool.Invoke[imageOut](ctx, r.LLM, llmtool.Call{
				Stage: StageImage,
				Spec:  imagePromptSpec,
				Input: map[string]any{"request": req, "previous_queries": tried},
			})
			if err != nil {
				last = err
				log.Warn("image query failed", "attempt", attempt, "error", err)
				continue
			}
			query = out.Query
		}
		tried = append(tried, query)

		if r.Limiter != nil {
			if err := r.Limiter.Acquire(ctx); err != nil {
				return err
			}
		}
		hits, err := r.Search.SearchImages(ctx, query)
		if err != nil {
			last = err
			log.Warn("image search failed", "query", query, "error", err)
			continue
		}
		if len(hits) == 0 {
			last = fmt.Errorf("no results for %q", query)
			continue
		}
		if err := r.saveFirst(ctx, hits, p, outPath); err != nil {
			last = err
			continue
		}
		log.Debug("image saved", "query", query, "attempts", attempt)
		return nil
	}
	return fmt.Errorf("%w: image after %d attempts: %v", ErrExhausted, attempts, last)
}

func (r *Resolver) saveFirst(ctx context.Context, hits []ImageHit, p deck.Placeholder, outPath string) error {
	var last error
	for _, h := range hits {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := r.Fetch.Fetch(ctx, h.URL)
		if err != nil {
			last = err
			continue
		}
		img, err := Decode(data)
		if err != nil {
			last = err
			continue
		}
		return SavePNG(outPath, PadToAspect(img, p.WidthPt, p.HeightPt))
	}
	if last == nil {
		last = errors.New("no usable hit")
	}
	return last
}
