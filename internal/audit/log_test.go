package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendVersionsPerAgentStage(t *testing.T) {
	l := NewLog("", nil)
	d1 := l.Append("s1", "outline_agent", "outline", map[string]string{"title": "a"})
	d2 := l.Append("s1", "outline_agent", "outline", map[string]string{"title": "b"})
	d3 := l.Append("s1", "content_agent", "content", json.RawMessage(`[1,2]`))
	require.Equal(t, 1, d1.Version)
	require.Equal(t, 2, d2.Version)
	require.Equal(t, 1, d3.Version)
	require.JSONEq(t, `[1,2]`, string(d3.Content))
	require.Len(t, l.List("s1"), 3)
	require.Empty(t, l.List("other"))
}

func TestConcurrentAppendsPersistWholeLines(t *testing.T) {
	dir := t.TempDir()
	l := NewLog(dir, nil)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				l.Append("run/1", fmt.Sprintf("agent%d", w), "content", map[string]int{"i": i})
			}
		}()
	}
	wg.Wait()

	drafts, err := l.Read("run/1")
	require.NoError(t, err)
	require.Len(t, drafts, 200)
	last := map[string]int{}
	for _, d := range drafts {
		require.Equal(t, last[d.Agent]+1, d.Version)
		last[d.Agent] = d.Version
	}

	// a fresh log over the same directory reads earlier runs
	again, err := NewLog(dir, nil).Read("run/1")
	require.NoError(t, err)
	require.Len(t, again, 200)
}

func TestSubscribe(t *testing.T) {
	l := NewLog("", nil)
	ch, cancel := l.Subscribe("s1", 4)
	l.Append("s2", "a", "outline", 1)
	l.Append("s1", "a", "outline", 2)
	d := <-ch
	require.Equal(t, "s1", d.SessionID)
	require.JSONEq(t, `2`, string(d.Content))
	cancel()
	cancel()
	_, open := <-ch
	require.False(t, open)
	l.Append("s1", "a", "outline", 3)
}

func TestPromptHook(t *testing.T) {
	l := NewLog("", nil)
	h := l.PromptHook("s1")
	h.Before(context.Background(), "outline", "PROMPT", map[string]string{"img": "data:image/png;base64,AAAA"})
	h.After(context.Background(), "outline", json.RawMessage(`{"ok":true}`), nil)
	h.After(context.Background(), "outline", nil, errors.New("503"))

	drafts := l.List("s1")
	require.Len(t, drafts, 3)
	require.Equal(t, StagePrompt, drafts[0].Stage)
	require.Contains(t, string(drafts[0].Content), "[REDACTED media]")
	require.Contains(t, string(drafts[1].Content), `"ok":true`)
	require.Contains(t, string(drafts[2].Content), "503")
	require.Equal(t, 3, drafts[2].Version)
}
