// Package session owns the mutable state of one generation run. All writes go
// through narrow lock-guarded methods; readers get copies.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"deckflow/internal/types/deck"
)

var (
	ErrOutlineSet     = errors.New("session: outline already accepted")
	ErrNoOutline      = errors.New("session: outline not accepted yet")
	ErrUnknownSlide   = errors.New("session: unknown slide")
	ErrDuplicateSlide = errors.New("session: duplicate slide")
)

type Store struct {
	mu        sync.RWMutex
	id        string
	req       deck.Request
	createdAt time.Time

	outline   *deck.Outline
	slides    map[int][]deck.SlideContent
	layouts   map[deck.SlideKey]int
	sections  map[int]deck.SectionResult
	diagrams  map[deck.AssetSlot]string
	result    *deck.Result
	updatedAt time.Time
}

func New(id string, req deck.Request) *Store {
	now := time.Now().UTC()
	return &Store{
		id:        id,
		req:       req,
		createdAt: now,
		updatedAt: now,
		slides:    map[int][]deck.SlideContent{},
		layouts:   map[deck.SlideKey]int{},
		sections:  map[int]deck.SectionResult{},
		diagrams:  map[deck.AssetSlot]string{},
	}
}

func (s *Store) ID() string            { return s.id }
func (s *Store) Request() deck.Request { return s.req }

// SetOutline accepts the outline. It can be set exactly once.
func (s *Store) SetOutline(o deck.Outline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outline != nil {
		return ErrOutlineSet
	}
	cp := o
	cp.Sections = append([]deck.Section(nil), o.Sections...)
	s.outline = &cp
	s.touch()
	return nil
}

func (s *Store) Outline() (deck.Outline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.outline == nil {
		return deck.Outline{}, false
	}
	return *s.outline, true
}

// AppendSlides adds slides to one section. Every slide must belong to that
// section and carry a slide index not yet present.
func (s *Store) AppendSlides(section int, slides ...deck.SlideContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outline == nil {
		return ErrNoOutline
	}
	if section < 0 || section >= len(s.outline.Sections) {
		return fmt.Errorf("session: section %d not in outline", section)
	}
	have := make(map[int]struct{}, len(s.slides[section])+len(slides))
	for _, sl := range s.slides[section] {
		have[sl.SlideIndex] = struct{}{}
	}
	for _, sl := range slides {
		if sl.SectionIndex != section {
			return fmt.Errorf("session: slide %s appended to section %d", sl.Key(), section)
		}
		if _, dup := have[sl.SlideIndex]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSlide, sl.Key())
		}
		have[sl.SlideIndex] = struct{}{}
	}
	s.slides[section] = append(s.slides[section], slides...)
	s.touch()
	return nil
}

// ReplaceSlide swaps in a revised slide, as produced by fit correction.
func (s *Store) ReplaceSlide(sl deck.SlideContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.slides[sl.SectionIndex]
	for i := range list {
		if list[i].SlideIndex == sl.SlideIndex {
			list[i] = sl
			s.touch()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownSlide, sl.Key())
}

// Slides returns a copy of one section's slides in slide order.
func (s *Store) Slides(section int) []deck.SlideContent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]deck.SlideContent(nil), s.slides[section]...)
	sort.Slice(out, func(i, j int) bool { return out[i].SlideIndex < out[j].SlideIndex })
	return out
}

// SetLayout records the chosen layout of a slide.
func (s *Store) SetLayout(key deck.SlideKey, layoutIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layouts[key] = layoutIndex
	s.touch()
}

// SetSection stores the assembled result of one section.
func (s *Store) SetSection(r deck.SectionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[r.Section.Index] = r
	s.touch()
}

// RecordDiagramType notes the type a slot rendered successfully. A later
// render of the same slot replaces it.
func (s *Store) RecordDiagramType(slot deck.AssetSlot, typ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagrams[slot] = typ
	s.touch()
}

// UsedDiagramTypes returns the types rendered by every slot except slot,
// including other placeholders of the same slide.
func (s *Store) UsedDiagramTypes(slot deck.AssetSlot) map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.diagrams))
	for other, typ := range s.diagrams {
		if other != slot {
			out[typ] = true
		}
	}
	return out
}

func (s *Store) SetResult(r deck.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = &r
	s.touch()
}

func (s *Store) Result() (deck.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return deck.Result{}, false
	}
	return *s.result, true
}

func (s *Store) touch() { s.updatedAt = time.Now().UTC() }

// Snapshot is the persisted view of a session: outline, every slide and the
// chosen layouts.
type Snapshot struct {
	SessionID        string               `json:"session_id"`
	Request          deck.Request         `json:"request"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	Outline          *deck.Outline        `json:"outline,omitempty"`
	Slides           []deck.SlideContent  `json:"slides"`
	Layouts          map[string]int       `json:"layouts"`
	Sections         []deck.SectionResult `json:"sections,omitempty"`
	UsedDiagramTypes []string             `json:"used_diagram_types,omitempty"`
	Result           *deck.Result         `json:"result,omitempty"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		SessionID: s.id,
		Request:   s.req,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
		Slides:    []deck.SlideContent{},
		Layouts:   make(map[string]int, len(s.layouts)),
	}
	if s.outline != nil {
		o := *s.outline
		snap.Outline = &o
	}
	for _, list := range s.slides {
		snap.Slides = append(snap.Slides, list...)
	}
	sort.Slice(snap.Slides, func(i, j int) bool {
		a, b := snap.Slides[i], snap.Slides[j]
		if a.SectionIndex != b.SectionIndex {
			return a.SectionIndex < b.SectionIndex
		}
		return a.SlideIndex < b.SlideIndex
	})
	for k, v := range s.layouts {
		snap.Layouts[k.String()] = v
	}
	for _, r := range s.sections {
		snap.Sections = append(snap.Sections, r)
	}
	sort.Slice(snap.Sections, func(i, j int) bool { return snap.Sections[i].Section.Index < snap.Sections[j].Section.Index })
	seen := map[string]bool{}
	for _, typ := range s.diagrams {
		if !seen[typ] {
			seen[typ] = true
			snap.UsedDiagramTypes = append(snap.UsedDiagramTypes, typ)
		}
	}
	sort.Strings(snap.UsedDiagramTypes)
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}
