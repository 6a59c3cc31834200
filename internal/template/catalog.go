// Package template loads slide layout catalogs: PPTX documents, YAML/JSON
// catalog files and the builtin catalog. Loaded catalogs are cached.
package template

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"deckflow/internal/logger"
	"deckflow/internal/types/deck"
)

const BuiltinPrefix = "builtin:"

var ErrUnknownTemplate = errors.New("template: unknown template")

// Catalog resolves template references to layout catalogs. It is safe for
// concurrent use.
type Catalog struct {
	cache *lru.Cache[string, deck.Catalog]
	log   *logger.Logger
}

func NewCatalog(size int, log *logger.Logger) (*Catalog, error) {
	if size <= 0 {
		size = 16
	}
	c, err := lru.New[string, deck.Catalog](size)
	if err != nil {
		return nil, err
	}
	return &Catalog{cache: c, log: logger.OrNop(log)}, nil
}

// LoadLayouts returns the catalog for ref: "builtin:<name>", or a path to a
// .pptx/.potx, .yaml/.yml or .json file. File entries are cached by path and
// modification time.
func (c *Catalog) LoadLayouts(ctx context.Context, ref string) (deck.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return deck.Catalog{}, err
	}
	ref = strings.TrimSpace(ref)
	key := ref
	if !strings.HasPrefix(ref, BuiltinPrefix) {
		fi, err := os.Stat(ref)
		if err != nil {
			return deck.Catalog{}, fmt.Errorf("%w %q: %v", ErrUnknownTemplate, ref, err)
		}
		key = fmt.Sprintf("%s@%d", ref, fi.ModTime().UnixNano())
	}
	if cat, ok := c.cache.Get(key); ok {
		return cat, nil
	}
	cat, err := load(ref)
	if err != nil {
		return deck.Catalog{}, err
	}
	c.cache.Add(key, cat)
	c.log.Debug("template loaded", "ref", ref, "layouts", len(cat.Layouts))
	return cat, nil
}

func load(ref string) (deck.Catalog, error) {
	if name, ok := strings.CutPrefix(ref, BuiltinPrefix); ok {
		cat, ok := Builtin(name)
		if !ok {
			return deck.Catalog{}, fmt.Errorf("%w %q", ErrUnknownTemplate, ref)
		}
		return cat, nil
	}
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".pptx", ".potx":
		f, err := os.Open(ref)
		if err != nil {
			return deck.Catalog{}, err
		}
		defer f.Close()
		fi, err := f.Stat()
		if err != nil {
			return deck.Catalog{}, err
		}
		return ReadPPTX(f, fi.Size(), ref)
	case ".yaml", ".yml", ".json":
		raw, err := os.ReadFile(ref)
		if err != nil {
			return deck.Catalog{}, err
		}
		return ParseCatalog(raw, ref)
	}
	return deck.Catalog{}, fmt.Errorf("%w %q: unsupported extension", ErrUnknownTemplate, ref)
}

// ParseCatalog decodes a YAML or JSON catalog file.
func ParseCatalog(raw []byte, ref string) (deck.Catalog, error) {
	var cat deck.Catalog
	trimmed := bytes.TrimSpace(raw)
	var err error
	if len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &cat)
	} else {
		err = yaml.Unmarshal(raw, &cat)
	}
	if err != nil {
		return deck.Catalog{}, fmt.Errorf("parse catalog %s: %w", ref, err)
	}
	if cat.TemplateRef == "" {
		cat.TemplateRef = ref
	}
	return cat, Normalize(&cat)
}

// Normalize canonicalizes placeholder types and rejects duplicate indices.
func Normalize(cat *deck.Catalog) error {
	if len(cat.Layouts) == 0 {
		return fmt.Errorf("catalog %s has no layouts", cat.TemplateRef)
	}
	layouts := map[int]struct{}{}
	for li := range cat.Layouts {
		l := &cat.Layouts[li]
		if _, dup := layouts[l.Index]; dup {
			return fmt.Errorf("catalog %s: duplicate layout index %d", cat.TemplateRef, l.Index)
		}
		layouts[l.Index] = struct{}{}
		seen := map[int]struct{}{}
		for pi := range l.Placeholders {
			p := &l.Placeholders[pi]
			if _, dup := seen[p.Index]; dup {
				return fmt.Errorf("catalog %s: layout %d has duplicate placeholder %d", cat.TemplateRef, l.Index, p.Index)
			}
			seen[p.Index] = struct{}{}
			p.Type = deck.ParsePlaceholderType(string(p.Type))
		}
	}
	return nil
}
