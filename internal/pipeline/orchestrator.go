// Package pipeline runs one deck generation: outline, then every section
// (content followed by layout assembly) on a bounded worker pool, then the
// merge that writes the deck.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"deckflow/internal/assemble"
	"deckflow/internal/audit"
	"deckflow/internal/llm"
	"deckflow/internal/logger"
	"deckflow/internal/scheduler"
	"deckflow/internal/session"
	"deckflow/internal/types/deck"
)

const (
	AgentOrchestrator = "orchestrator"
	StageMerge        = "merge"
	StageResult       = "result"
)

// LayoutLoader resolves a template reference to its layout catalog.
type LayoutLoader interface {
	LoadLayouts(ctx context.Context, ref string) (deck.Catalog, error)
}

type Orchestrator struct {
	Outline   *OutlineStage
	Content   *ContentStage
	Assembler *Assembler
	Templates LayoutLoader
	// Sessions registers runs started through Generate; optional.
	Sessions *session.Registry
	Audit    *audit.Log
	Writer   *assemble.Writer
	// Workers bounds concurrently processed sections.
	Workers int
	Log     *logger.Logger
}

// Generate creates a session for req and runs it to completion.
func (o *Orchestrator) Generate(ctx context.Context, req deck.Request) deck.Result {
	var store *session.Store
	if o.Sessions != nil {
		store = o.Sessions.Create(req)
	} else {
		store = session.New(uuid.NewString(), req)
	}
	return o.Run(ctx, store)
}

// Run drives an existing session. The returned result is also stored on the
// session. Only request validation, catalog loading, the outline and the
// final write are fatal.
func (o *Orchestrator) Run(ctx context.Context, store *session.Store) deck.Result {
	id, req := store.ID(), store.Request()
	log := logger.OrNop(o.Log).With("session", id)
	if o.Audit != nil {
		ctx = llm.WithHook(ctx, o.Audit.PromptHook(id))
	}
	fail := func(stage string, err error) deck.Result {
		r := deck.Result{Status: deck.StatusError, Message: fmt.Sprintf("%s: %v", stage, err), SessionID: id}
		log.Error("generation failed", "stage", stage, "error", err)
		o.finish(store, r)
		return r
	}

	if err := req.Validate(); err != nil {
		return fail("request", err)
	}
	log.Info("generation started", "topic", req.Topic, "template", req.TemplateRef)
	cat, err := o.Templates.LoadLayouts(ctx, req.TemplateRef)
	if err != nil {
		return fail("template", err)
	}
	outline, err := o.Outline.Run(ctx, id, req)
	if err != nil {
		return fail(StageOutline, err)
	}
	if err := store.SetOutline(outline); err != nil {
		return fail(StageOutline, err)
	}

	sections := Merge(o.processSections(ctx, store, outline, cat))
	if o.Audit != nil {
		o.Audit.Append(id, AgentOrchestrator, StageMerge, mergeSummary(sections))
	}
	if err := o.Writer.WriteSnapshot(ctx, id, store.Snapshot()); err != nil {
		log.Warn("snapshot write failed", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return fail(StageMerge, err)
	}

	res := summarize(id, sections)
	if res.SlideCount == 0 {
		return fail(StageMerge, errors.New("no section produced slides"))
	}
	out, err := o.Writer.WriteDeck(ctx, assemble.Manifest{
		SessionID: id,
		Request:   req,
		Outline:   outline,
		Catalog:   cat,
		Sections:  sections,
	})
	if err != nil {
		return fail("write", err)
	}
	res.OutputPath = out
	log.Info("generation finished", "sections", res.SectionCount, "slides", res.SlideCount,
		"degraded", len(res.Degraded), "partial", len(res.Partial), "output", out)
	o.finish(store, res)
	return res
}

func (o *Orchestrator) finish(store *session.Store, r deck.Result) {
	store.SetResult(r)
	if o.Audit != nil {
		o.Audit.Append(store.ID(), AgentOrchestrator, StageResult, r)
	}
}

// processSections returns section results in completion order. Sections that
// never ran or panicked come back as partial results without slides.
func (o *Orchestrator) processSections(ctx context.Context, store *session.Store, outline deck.Outline, cat deck.Catalog) []deck.SectionResult {
	var (
		mu   sync.Mutex
		done []deck.SectionResult
	)
	ids := make([]int, len(outline.Sections))
	for i := range ids {
		ids[i] = i
	}
	failed, err := scheduler.ScheduleHeavierStart(ctx, scheduler.Params{
		IDs:       ids,
		WeightOf:  func(id int) int { return outline.Sections[id].EstimatedSlides },
		NParallel: max(1, o.Workers),
		Run: func(ctx context.Context, id int) error {
			r := o.processSection(ctx, store, outline, outline.Sections[id], cat)
			mu.Lock()
			done = append(done, r)
			mu.Unlock()
			if r.Partial {
				return errors.New(r.Error)
			}
			return nil
		},
	})
	if err != nil {
		failed = map[int]error{}
		for _, id := range ids {
			failed[id] = err
		}
	}

	seen := make(map[int]bool, len(done))
	for _, r := range done {
		seen[r.Section.Index] = true
	}
	for id, ferr := range failed {
		if !seen[id] {
			done = append(done, deck.SectionResult{Section: outline.Sections[id], Slides: []deck.AssembledSlide{}, Partial: true, Error: ferr.Error()})
		}
	}
	return done
}

// processSection never fails the run: any error turns into a partial result
// keeping the slides assembled before it.
func (o *Orchestrator) processSection(ctx context.Context, store *session.Store, outline deck.Outline, sec deck.Section, cat deck.Catalog) deck.SectionResult {
	id := store.ID()
	log := logger.OrNop(o.Log).With("session", id, "section", sec.Index)
	res := deck.SectionResult{Section: sec, Slides: []deck.AssembledSlide{}}

	partial := func(err error) deck.SectionResult {
		res.Partial, res.Error = true, err.Error()
		log.Warn("section partially failed", "slides", len(res.Slides), "error", err)
		o.saveSection(ctx, store, res)
		return res
	}

	slides, err := o.Content.Run(ctx, id, store.Request(), outline, sec)
	if err != nil {
		return partial(err)
	}
	if err := store.AppendSlides(sec.Index, slides...); err != nil {
		return partial(err)
	}
	assembled, err := o.Assembler.Assemble(ctx, store, sec, slides, cat)
	res.Slides = assembled.Slides
	if err != nil {
		return partial(err)
	}
	o.saveSection(ctx, store, res)
	log.Debug("section assembled", "slides", len(res.Slides))
	return res
}

func (o *Orchestrator) saveSection(ctx context.Context, store *session.Store, r deck.SectionResult) {
	store.SetSection(r)
	if o.Writer == nil {
		return
	}
	if err := o.Writer.WriteSection(context.WithoutCancel(ctx), store.ID(), r); err != nil {
		logger.OrNop(o.Log).Warn("section write failed", "session", store.ID(), "section", r.Section.Index, "error", err)
	}
}

// Merge orders section results by section index regardless of completion
// order.
func Merge(results []deck.SectionResult) []deck.SectionResult {
	out := append([]deck.SectionResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Section.Index < out[j].Section.Index })
	return out
}

func summarize(id string, sections []deck.SectionResult) deck.Result {
	res := deck.Result{Status: deck.StatusSuccess, SessionID: id}
	for _, s := range sections {
		if s.Partial {
			res.Partial = append(res.Partial, s.Section.Index)
		}
		if len(s.Slides) > 0 {
			res.SectionCount++
		}
		for _, sl := range s.Slides {
			res.SlideCount++
			if len(sl.Flags) > 0 {
				res.Degraded = append(res.Degraded, sl.Content.Key())
			}
		}
	}
	return res
}

type sectionSummary struct {
	Index   int    `json:"index"`
	Slides  int    `json:"slides"`
	Partial bool   `json:"partial,omitempty"`
	Error   string `json:"error,omitempty"`
}

func mergeSummary(sections []deck.SectionResult) []sectionSummary {
	out := make([]sectionSummary, len(sections))
	for i, s := range sections {
		out[i] = sectionSummary{Index: s.Section.Index, Slides: len(s.Slides), Partial: s.Partial, Error: s.Error}
	}
	return out
}
