// Package assemble writes a finished deck: the JSON manifest, an HTML
// rendition, per-slide PNG previews and the per-section snapshots.
package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"deckflow/internal/artifact"
	"deckflow/internal/fit"
	"deckflow/internal/logger"
	"deckflow/internal/types/deck"
	"deckflow/internal/util/jsonutil"
)

const (
	ManifestPath = "deck.json"
	HTMLPath     = "deck.html"
	SnapshotPath = "session.json"
)

// Manifest is the machine-readable deck.
type Manifest struct {
	SessionID   string               `json:"session_id"`
	Request     deck.Request         `json:"request"`
	Outline     deck.Outline         `json:"outline"`
	Catalog     deck.Catalog         `json:"catalog"`
	Sections    []deck.SectionResult `json:"sections"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Slides flattens the sections in order.
func (m Manifest) Slides() []deck.AssembledSlide {
	var out []deck.AssembledSlide
	for _, s := range m.Sections {
		out = append(out, s.Slides...)
	}
	return out
}

type Writer struct {
	Store artifact.Store
	Fonts fit.Fonts
	// Previews disables PNG rendering when false.
	Previews bool
	Log      *logger.Logger
}

func SectionPath(index int) string { return fmt.Sprintf("sections/%02d.json", index) }

func PreviewPath(n int) string { return fmt.Sprintf("previews/%03d.png", n) }

// WriteSection snapshots one assembled section before the merge.
func (w *Writer) WriteSection(ctx context.Context, sessionID string, r deck.SectionResult) error {
	b, err := jsonutil.MarshalNoEscapeIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return w.Store.Put(ctx, sessionID, SectionPath(r.Section.Index), b)
}

// WriteSnapshot persists the session snapshot: outline, slides and layouts.
func (w *Writer) WriteSnapshot(ctx context.Context, sessionID string, snap any) error {
	b, err := jsonutil.MarshalNoEscapeIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return w.Store.Put(ctx, sessionID, SnapshotPath, b)
}

// WriteDeck uploads the asset files the slides reference, then the manifest,
// HTML and previews. Sections must already be in index order. It returns the
// location of deck.html.
func (w *Writer) WriteDeck(ctx context.Context, m Manifest) (string, error) {
	log := logger.OrNop(w.Log).With("session", m.SessionID)
	if !sort.SliceIsSorted(m.Sections, func(i, j int) bool { return m.Sections[i].Section.Index < m.Sections[j].Section.Index }) {
		return "", fmt.Errorf("sections are not in index order")
	}
	if m.GeneratedAt.IsZero() {
		m.GeneratedAt = time.Now().UTC()
	}
	assets, err := w.uploadAssets(ctx, m)
	if err != nil {
		return "", err
	}

	b, err := jsonutil.MarshalNoEscapeIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	if err := w.Store.Put(ctx, m.SessionID, ManifestPath, b); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	html, err := RenderHTML(m, assets)
	if err != nil {
		return "", err
	}
	if err := w.Store.Put(ctx, m.SessionID, HTMLPath, html); err != nil {
		return "", fmt.Errorf("write html: %w", err)
	}

	if w.Previews {
		for i, s := range m.Slides() {
			png, err := RenderPreview(m.Catalog, s, w.fonts())
			if err != nil {
				log.Warn("preview failed", "slide", s.Content.Key().String(), "error", err)
				continue
			}
			if err := w.Store.Put(ctx, m.SessionID, PreviewPath(i+1), png); err != nil {
				return "", fmt.Errorf("write preview: %w", err)
			}
		}
	}

	out, err := w.Store.GetURL(ctx, m.SessionID, HTMLPath)
	if err != nil || out == "" {
		out = m.SessionID + "/" + HTMLPath
	}
	log.Info("deck written", "slides", len(m.Slides()), "output", out)
	return out, nil
}

func (w *Writer) fonts() fit.Fonts {
	if w.Fonts.BodyPt <= 0 || w.Fonts.TitlePt <= 0 {
		return fit.DefaultFonts()
	}
	return w.Fonts
}

// uploadAssets copies every referenced asset file into the store under
// assets/ and returns local path -> store-relative path.
func (w *Writer) uploadAssets(ctx context.Context, m Manifest) (map[string]string, error) {
	out := map[string]string{}
	for _, s := range m.Slides() {
		for _, idx := range s.Mapping.Indices() {
			v := s.Mapping.Values[idx]
			if v.Kind != deck.ValueAsset || v.Path == "" {
				continue
			}
			if _, done := out[v.Path]; done {
				continue
			}
			data, err := os.ReadFile(v.Path)
			if err != nil {
				return nil, fmt.Errorf("read asset %s: %w", v.Path, err)
			}
			rel := "assets/" + filepath.Base(v.Path)
			if err := w.Store.Put(ctx, m.SessionID, rel, data); err != nil {
				return nil, fmt.Errorf("write asset: %w", err)
			}
			out[v.Path] = rel
		}
	}
	return out, nil
}
