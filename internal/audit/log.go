// Package audit keeps the append-only Draft log of a run. Each session is
// persisted as one JSONL file; live subscribers receive drafts as they land.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"deckflow/internal/logger"
	"deckflow/internal/types/deck"
)

var sessionIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

type versionKey struct{ session, agent, stage string }

// Log is safe for concurrent appends; each record is written under one lock
// so JSONL lines never interleave.
type Log struct {
	dir string
	log *logger.Logger

	mu       sync.Mutex
	drafts   map[string][]deck.Draft
	versions map[versionKey]int
	subs     map[string]map[int]chan deck.Draft
	nextSub  int
}

// NewLog persists under dir. An empty dir keeps drafts in memory only.
func NewLog(dir string, log *logger.Logger) *Log {
	dir = strings.TrimSpace(dir)
	if dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	return &Log{
		dir:      dir,
		log:      logger.OrNop(log),
		drafts:   map[string][]deck.Draft{},
		versions: map[versionKey]int{},
		subs:     map[string]map[int]chan deck.Draft{},
	}
}

func sanitizeSessionID(id string) string {
	id = sessionIDSanitizer.ReplaceAllString(strings.TrimSpace(id), "_")
	if id == "" {
		return "unknown"
	}
	return id
}

func (l *Log) filePath(sessionID string) string {
	return filepath.Join(l.dir, sanitizeSessionID(sessionID)+".jsonl")
}

// Append records content as the next version for (agent, stage). Content
// that is already JSON is stored as-is; anything else is marshaled.
func (l *Log) Append(sessionID, agent, stage string, content any) deck.Draft {
	raw, err := encode(content)
	if err != nil {
		l.log.Warn("draft content not encodable", "session", sessionID, "stage", stage, "error", err)
		raw, _ = json.Marshal(fmt.Sprint(content))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	k := versionKey{sessionID, agent, stage}
	l.versions[k]++
	d := deck.Draft{
		SessionID: sessionID,
		Agent:     agent,
		Stage:     stage,
		Content:   raw,
		Timestamp: time.Now().UTC(),
		Version:   l.versions[k],
	}
	l.drafts[sessionID] = append(l.drafts[sessionID], d)
	l.persist(d)
	for _, ch := range l.subs[sessionID] {
		select {
		case ch <- d:
		default:
			// slow subscriber; the draft stays readable via List
		}
	}
	return d
}

func encode(content any) (json.RawMessage, error) {
	switch v := content.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if json.Valid(v) {
			return append(json.RawMessage(nil), v...), nil
		}
		return json.Marshal(string(v))
	case []byte:
		if json.Valid(v) {
			return append(json.RawMessage(nil), v...), nil
		}
		return json.Marshal(string(v))
	}
	return json.Marshal(content)
}

// persist is called with l.mu held.
func (l *Log) persist(d deck.Draft) {
	if l.dir == "" {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	raw = append(raw, '\n')
	f, err := os.OpenFile(l.filePath(d.SessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		l.log.Warn("draft not persisted", "session", d.SessionID, "error", err)
		return
	}
	defer f.Close()
	_, _ = f.Write(raw)
}

// List returns the drafts of a session in append order.
func (l *Log) List(sessionID string) []deck.Draft {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]deck.Draft(nil), l.drafts[sessionID]...)
}

// Read loads a session's drafts from disk, for sessions of earlier runs.
func (l *Log) Read(sessionID string) ([]deck.Draft, error) {
	if l.dir == "" {
		return l.List(sessionID), nil
	}
	f, err := os.Open(l.filePath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []deck.Draft{}, nil
		}
		return nil, fmt.Errorf("open draft log: %w", err)
	}
	defer f.Close()

	out := make([]deck.Draft, 0, 64)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var d deck.Draft
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan draft log: %w", err)
	}
	return out, nil
}

// Subscribe streams future drafts of a session. The returned cancel func
// closes the channel.
func (l *Log) Subscribe(sessionID string, buffer int) (<-chan deck.Draft, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan deck.Draft, buffer)
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	if l.subs[sessionID] == nil {
		l.subs[sessionID] = map[int]chan deck.Draft{}
	}
	l.subs[sessionID][id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs[sessionID], id)
			if len(l.subs[sessionID]) == 0 {
				delete(l.subs, sessionID)
			}
			l.mu.Unlock()
			close(ch)
		})
	}
}
