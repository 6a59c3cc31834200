package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deckflow/internal/asset"
	"deckflow/internal/candidate"
	"deckflow/internal/fit"
	"deckflow/internal/layout"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/logger"
	"deckflow/internal/session"
	"deckflow/internal/types/deck"
)

const (
	AgentLayout   = "layout_agent"
	AgentAssembly = "assembly_agent"
	StageSlide    = "slide"
)

// Assembler turns a section's slides into assembled slides: layout
// selection, content mapping, asset resolution and fit correction.
type Assembler struct {
	Selector *layout.Selector
	Mapper   *layout.Mapper
	// Assets may be nil; every asset placeholder is then flagged.
	Assets *asset.Resolver
	Fit    fit.Engine
	// LLM rewrites overflowing text. A nil client goes straight to truncation.
	LLM llmclient.LLMClient
	// WorkDir holds per-session asset files under <WorkDir>/<session>/assets.
	WorkDir string
	Drafts  candidate.Recorder
	Log     *logger.Logger
}

// Assemble processes the slides sequentially. Asset and fit failures are
// recorded as slide flags; only cancellation and catalog inconsistencies
// return an error, together with the slides assembled so far.
func (a *Assembler) Assemble(ctx context.Context, store *session.Store, sec deck.Section, slides []deck.SlideContent, cat deck.Catalog) (deck.SectionResult, error) {
	res := deck.SectionResult{Section: sec, Slides: []deck.AssembledSlide{}}
	log := logger.OrNop(a.Log).With("session", store.ID(), "section", sec.Index)

	idxs, err := a.Selector.Select(ctx, sec, slides, cat)
	if err != nil {
		return res, err
	}
	a.record(store.ID(), AgentLayout, layout.StageLayout, map[string]any{"section": sec.Index, "layout_indexes": idxs})

	mapper := *a.Mapper
	mapper.AssetPath = layout.AssetPaths(filepath.Join(a.WorkDir, store.ID()))
	var resolver *asset.Resolver
	if a.Assets != nil {
		r := *a.Assets
		r.Claims = store
		resolver = &r
	}
	lang := store.Request().LanguageOrDefault()

	for i, sl := range slides {
		l, ok := cat.Layout(idxs[i])
		if !ok {
			return res, fmt.Errorf("slide %s: layout %d not in catalog %s", sl.Key(), idxs[i], cat.TemplateRef)
		}
		store.SetLayout(sl.Key(), l.Index)

		as, err := a.slide(ctx, &mapper, resolver, lang, sec, sl, l)
		if err != nil {
			return res, err
		}
		if as.Content.Title != sl.Title || as.Content.Body.String() != sl.Body.String() {
			if err := store.ReplaceSlide(as.Content); err != nil {
				log.Warn("replace slide failed", "slide", sl.Key().String(), "error", err)
			}
		}
		res.Slides = append(res.Slides, as)
		a.record(store.ID(), AgentAssembly, StageSlide, as)
		if len(as.Flags) > 0 {
			log.Info("slide accepted with flags", "slide", sl.Key().String(), "flags", as.Flags)
		}
	}
	return res, nil
}

func (a *Assembler) slide(ctx context.Context, mapper *layout.Mapper, resolver *asset.Resolver, lang string, sec deck.Section, sl deck.SlideContent, l deck.Layout) (deck.AssembledSlide, error) {
	as := deck.AssembledSlide{Content: sl, Layout: l}
	cm, err := mapper.Map(ctx, sec, sl, l)
	if err != nil {
		return as, err
	}
	if err := a.resolveAssets(ctx, resolver, sl, l, cm, &as); err != nil {
		return as, err
	}

	var regen fit.Regenerate
	if a.LLM != nil {
		regen = refitter(a.LLM, lang, sl)
	}
	out := a.Fit.Enforce(ctx, l, cm, regen)
	if err := ctx.Err(); err != nil {
		return as, err
	}
	as.Mapping = out.Mapping
	if out.Degraded {
		as.AddFlag(deck.FlagDegraded)
	}
	if out.Regenerations > 0 || len(out.Truncated) > 0 {
		as.Content = contentFromMapping(sl, out.Mapping)
	}
	return as, nil
}

// resolveAssets renders or fetches every asset value in place. A value whose
// asset cannot be produced becomes empty and flags the slide.
func (a *Assembler) resolveAssets(ctx context.Context, resolver *asset.Resolver, sl deck.SlideContent, l deck.Layout, cm deck.ContentMapping, as *deck.AssembledSlide) error {
	log := logger.OrNop(a.Log).With("slide", sl.Key().String())
	for _, idx := range cm.Indices() {
		v := cm.Values[idx]
		if v.Kind != deck.ValueAsset {
			continue
		}
		p, _ := l.Placeholder(idx)
		err := a.resolveOne(ctx, resolver, sl, v, p)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("asset left empty", "placeholder", idx, "role", v.Role, "error", err)
		cm.Values[idx] = deck.Empty()
		if v.Role == deck.RoleDiagram {
			as.AddFlag(deck.FlagDiagramError)
		} else {
			as.AddFlag(deck.FlagImageError)
		}
	}
	return nil
}

func (a *Assembler) resolveOne(ctx context.Context, resolver *asset.Resolver, sl deck.SlideContent, v deck.MappedValue, p deck.Placeholder) error {
	if resolver == nil {
		return fmt.Errorf("%w: no asset resolver configured", asset.ErrExhausted)
	}
	if err := os.MkdirAll(filepath.Dir(v.Path), 0o755); err != nil {
		return err
	}
	switch v.Role {
	case deck.RoleDiagram:
		if v.Ref < 0 || v.Ref >= len(sl.Diagrams) {
			return fmt.Errorf("diagram %d not requested", v.Ref)
		}
		_, err := resolver.ResolveDiagram(ctx, sl.Key(), sl.Diagrams[v.Ref], p, v.Path)
		return err
	case deck.RoleImage:
		if v.Ref < 0 || v.Ref >= len(sl.Images) {
			return fmt.Errorf("image %d not requested", v.Ref)
		}
		return resolver.ResolveImage(ctx, sl.Key(), sl.Images[v.Ref], p, v.Path)
	}
	return errors.New("asset value without role")
}

// contentFromMapping folds rewritten placeholder text back into the slide.
func contentFromMapping(sl deck.SlideContent, m deck.ContentMapping) deck.SlideContent {
	out := sl
	var bodies []deck.MappedValue
	for _, idx := range m.Indices() {
		v := m.Values[idx]
		if !v.IsTextual() {
			continue
		}
		switch v.Role {
		case deck.RoleTitle:
			if v.Kind == deck.ValueText {
				out.Title = v.Text
			}
		case deck.RoleBody:
			bodies = append(bodies, v)
		}
	}
	switch {
	case len(bodies) == 1:
		out.Body = bodies[0].Body()
	case len(bodies) > 1 && sl.Body.IsList():
		var items []string
		for _, v := range bodies {
			if v.Kind == deck.ValueList {
				items = append(items, v.Items...)
			} else {
				items = append(items, v.Text)
			}
		}
		out.Body = deck.ListBody(items...)
	case len(bodies) > 1:
		parts := make([]string, len(bodies))
		for i, v := range bodies {
			parts[i] = v.Body().String()
		}
		out.Body = deck.TextBody(strings.Join(parts, "\n"))
	}
	return out
}

func (a *Assembler) record(sessionID, agent, stage string, content any) {
	if a.Drafts != nil {
		a.Drafts.Append(sessionID, agent, stage, content)
	}
}
