package layout

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"deckflow/internal/deckerr"
	llmclient "deckflow/internal/llmClient"
	"deckflow/internal/llmtool"
	"deckflow/internal/logger"
	"deckflow/internal/retry"
	"deckflow/internal/types/deck"
)

const StageMapping = "mapping"

var mapPromptSpec = llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:    "Assign the content of one slide to the placeholders of its chosen layout.",
	Background: "Placeholders are listed with index, type, name and size. Requested images and diagrams are referenced by token.",
	OutputFields: []llmtool.PromptField{
		{Name: "mappings", Type: "map[string]string|[]string", Required: true, Description: "Placeholder index (as string) to text, list of bullet strings, or an asset token like \"image:0\" or \"diagram:0\"."},
	},
	Constraints: []string{
		"Use only placeholder indexes listed in the input.",
		"Asset tokens may only go to picture, diagram, chart or object placeholders.",
		"Each asset token may be used at most once.",
	},
	Rules: []string{
		"Put the slide title into the most prominent title placeholder.",
		"Put the body text or bullets into body or object placeholders.",
		"Leave placeholders without matching content out of the mapping.",
	},
	OutputFormat: "JSON only.",
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetNoInvent())

type mapOut struct {
	Mappings map[string]deck.RawValue `json:"mappings"`
}

// AssetPathFunc names the file an asset of a slide is written to.
type AssetPathFunc func(key deck.SlideKey, role deck.Role, ref int) string

// AssetPaths lays assets out as <root>/assets/sNN_pNN_<role>_N.png.
func AssetPaths(root string) AssetPathFunc {
	return func(key deck.SlideKey, role deck.Role, ref int) string {
		return filepath.Join(root, "assets", fmt.Sprintf("s%02d_p%02d_%s_%d.png", key.Section, key.Slide, role, ref))
	}
}

// Mapper assigns slide content to placeholders through the generation
// service, falling back to RuleMapping when retries run out.
type Mapper struct {
	LLM       llmclient.LLMClient
	Retries   int
	AssetPath AssetPathFunc
	Log       *logger.Logger
}

// Map returns a mapping that covers every placeholder of l exactly once.
// Placeholders without content hold an empty value.
func (m *Mapper) Map(ctx context.Context, sec deck.Section, slide deck.SlideContent, l deck.Layout) (deck.ContentMapping, error) {
	paths := m.AssetPath
	if paths == nil {
		paths = AssetPaths(".")
	}
	var phs []map[string]any
	for _, p := range UsablePlaceholders(l) {
		phs = append(phs, map[string]any{
			"index": p.Index, "type": p.Type, "name": p.Name,
			"width_pt": p.WidthPt, "height_pt": p.HeightPt,
		})
	}
	var assets []string
	for i, img := range slide.Images {
		assets = append(assets, fmt.Sprintf("image:%d = %s", i, img.Description))
	}
	for i, d := range slide.Diagrams {
		assets = append(assets, fmt.Sprintf("diagram:%d = %s", i, d.Description))
	}
	input := map[string]any{
		"section":      sec.Title,
		"slide":        map[string]any{"title": slide.Title, "content": slide.Body, "keywords": slide.Keywords},
		"assets":       assets,
		"placeholders": phs,
	}

	log := logger.OrNop(m.Log).With("slide", slide.Key().String(), "layout", l.Index)
	out, err := retry.Do(ctx, max(1, m.Retries), func(ctx context.Context, attempt int) (deck.ContentMapping, error) {
		res, raw, err := llmtool.Invoke[mapOut](ctx, m.LLM, llmtool.Call{Stage: StageMapping, Spec: mapPromptSpec, Input: input})
		if err != nil {
			return deck.ContentMapping{}, err
		}
		cm, err := FromRaw(res.Mappings, slide, l, paths)
		if err != nil {
			return deck.ContentMapping{}, deckerr.SchemaParse(StageMapping, raw, err)
		}
		return cm, nil
	}, retry.Options{OnRetry: func(attempt int, err error) {
		log.Debug("mapping retry", "attempt", attempt, "error", err)
	}})
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return deck.ContentMapping{}, ctx.Err()
	}
	log.Warn("mapping fell back to rules", "error", err)
	return RuleMapping(slide, l, paths), nil
}

// parseToken recognizes "image:N" and "diagram:N".
func parseToken(s string) (deck.Role, int, bool) {
	kind, n, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return deck.RoleNone, 0, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil {
		return deck.RoleNone, 0, false
	}
	switch strings.ToLower(kind) {
	case "image":
		return deck.RoleImage, idx, true
	case "diagram":
		return deck.RoleDiagram, idx, true
	}
	return deck.RoleNone, 0, false
}

// FromRaw validates a model mapping against the layout and slide and fills
// unmapped placeholders with empty values.
func FromRaw(raw map[string]deck.RawValue, slide deck.SlideContent, l deck.Layout, paths AssetPathFunc) (deck.ContentMapping, error) {
	cm := deck.ContentMapping{SlideIndex: slide.SlideIndex, LayoutIndex: l.Index, Values: map[int]deck.MappedValue{}}
	usedAssets := map[string]bool{}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := raw[k]
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return cm, fmt.Errorf("placeholder key %q is not an index", k)
		}
		p, ok := l.Placeholder(idx)
		if !ok {
			return cm, fmt.Errorf("placeholder %d is not in layout %d", idx, l.Index)
		}
		if !p.Type.Usable() {
			return cm, fmt.Errorf("placeholder %d (%s) does not take content", idx, p.Type)
		}
		if !v.IsList {
			if role, ref, isTok := parseToken(v.Text); isTok {
				if !p.Type.IsVisual() {
					return cm, fmt.Errorf("asset %s mapped to non-visual placeholder %d (%s)", v.Text, idx, p.Type)
				}
				if (role == deck.RoleImage && ref >= len(slide.Images)) || (role == deck.RoleDiagram && ref >= len(slide.Diagrams)) || ref < 0 {
					return cm, fmt.Errorf("asset %s does not exist", v.Text)
				}
				tok := fmt.Sprintf("%s:%d", role, ref)
				if usedAssets[tok] {
					return cm, fmt.Errorf("asset %s mapped twice", tok)
				}
				usedAssets[tok] = true
				cm.Values[idx] = deck.Asset(role, ref, paths(slide.Key(), role, ref))
				continue
			}
		}
		if p.Type == deck.PhPicture || p.Type == deck.PhDiagram || p.Type == deck.PhChart {
			return cm, fmt.Errorf("text mapped to %s placeholder %d", p.Type, idx)
		}
		role := deck.RoleBody
		if p.Type.IsTitle() {
			role = deck.RoleTitle
		}
		switch {
		case v.IsList:
			cm.Values[idx] = deck.List(role, v.Items)
		case strings.TrimSpace(v.Text) == "":
			cm.Values[idx] = deck.Empty()
		default:
			cm.Values[idx] = deck.Text(role, v.Text)
		}
	}
	fillEmpty(&cm, l)
	return cm, cm.Validate(l)
}

func fillEmpty(cm *deck.ContentMapping, l deck.Layout) {
	for _, p := range l.Placeholders {
		if _, ok := cm.Values[p.Index]; !ok {
			cm.Values[p.Index] = deck.Empty()
		}
	}
}

// RuleMapping is the deterministic mapping: the title goes to the most
// prominent title placeholder, the body to body placeholders (a list is split
// across several), diagrams then images to the remaining visual placeholders.
func RuleMapping(slide deck.SlideContent, l deck.Layout, paths AssetPathFunc) deck.ContentMapping {
	if paths == nil {
		paths = AssetPaths(".")
	}
	cm := deck.ContentMapping{SlideIndex: slide.SlideIndex, LayoutIndex: l.Index, Values: map[int]deck.MappedValue{}}
	used := map[int]bool{}
	usable := UsablePlaceholders(l)

	if t := strings.TrimSpace(slide.Title); t != "" {
		if p, ok := mostProminentTitle(usable); ok {
			cm.Values[p.Index] = deck.Text(deck.RoleTitle, slide.Title)
			used[p.Index] = true
		}
	}

	hasAssets := len(slide.Images)+len(slide.Diagrams) > 0
	if !slide.Body.IsEmpty() {
		var targets []deck.Placeholder
		for _, typ := range []deck.PlaceholderType{deck.PhBody, deck.PhObject, deck.PhSubtitle} {
			for _, p := range usable {
				if p.Type == typ && !used[p.Index] {
					targets = append(targets, p)
				}
			}
			if len(targets) > 0 {
				break
			}
		}
		// objects double as asset slots; keep the rest free when assets exist
		if hasAssets && len(targets) > 1 && targets[0].Type == deck.PhObject {
			targets = targets[:1]
		}
		if len(targets) > 0 {
			if slide.Body.IsList() && len(targets) > 1 && len(slide.Body.Items) > 1 {
				parts := splitItems(slide.Body.Items, min(len(targets), len(slide.Body.Items)))
				for i, part := range parts {
					cm.Values[targets[i].Index] = deck.List(deck.RoleBody, part)
					used[targets[i].Index] = true
				}
			} else {
				cm.Values[targets[0].Index] = deck.FromBody(deck.RoleBody, slide.Body)
				used[targets[0].Index] = true
			}
		}
	}

	type asset struct {
		role deck.Role
		ref  int
	}
	var assets []asset
	for i := range slide.Diagrams {
		assets = append(assets, asset{deck.RoleDiagram, i})
	}
	for i := range slide.Images {
		assets = append(assets, asset{deck.RoleImage, i})
	}
	var slots []deck.Placeholder
	for _, p := range usable {
		if !used[p.Index] && (p.Type == deck.PhPicture || p.Type == deck.PhDiagram || p.Type == deck.PhChart) {
			slots = append(slots, p)
		}
	}
	for _, p := range usable {
		if !used[p.Index] && p.Type == deck.PhObject {
			slots = append(slots, p)
		}
	}
	for i := 0; i < len(assets) && i < len(slots); i++ {
		a := assets[i]
		cm.Values[slots[i].Index] = deck.Asset(a.role, a.ref, paths(slide.Key(), a.role, a.ref))
	}

	fillEmpty(&cm, l)
	return cm
}

// mostProminentTitle prefers center titles, then the largest title.
func mostProminentTitle(usable []deck.Placeholder) (deck.Placeholder, bool) {
	var best deck.Placeholder
	found := false
	for _, p := range usable {
		if !p.Type.IsTitle() {
			continue
		}
		switch {
		case !found:
			best, found = p, true
		case p.Type == deck.PhCenterTitle && best.Type != deck.PhCenterTitle:
			best = p
		case p.Type == best.Type && p.Area() > best.Area():
			best = p
		}
	}
	return best, found
}

func splitItems(items []string, n int) [][]string {
	out := make([][]string, 0, n)
	per := (len(items) + n - 1) / n
	for i := 0; i < len(items); i += per {
		out = append(out, append([]string{}, items[i:min(i+per, len(items))]...))
	}
	return out
}
