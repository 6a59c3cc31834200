package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"deckflow/internal/audit"
	"deckflow/internal/pipeline"
	"deckflow/internal/types/deck"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type draftKey struct {
	agent, stage string
	version      int
}

// handleDraftsWS replays a session's drafts and streams new ones until the
// run's result draft is sent or the client goes away.
// Query: session_id (required), include_prompts=true.
func (s *Server) handleDraftsWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if id == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	prompts := r.URL.Query().Get("include_prompts") == "true"

	// subscribe before the replay so nothing falls between the two
	live, unsubscribe := s.audit.Subscribe(id, 256)
	defer unsubscribe()

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	// the reader only notices the peer closing
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(d deck.Draft) bool {
		if d.Stage == audit.StagePrompt && !prompts {
			return true
		}
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return false
		}
		return conn.WriteJSON(d) == nil
	}
	done := func(d deck.Draft) bool {
		return d.Agent == pipeline.AgentOrchestrator && d.Stage == pipeline.StageResult
	}

	sent := map[draftKey]bool{}
	for _, d := range s.audit.List(id) {
		sent[draftKey{d.Agent, d.Stage, d.Version}] = true
		if !send(d) {
			return
		}
		if done(d) {
			closeNormally(conn)
			return
		}
	}

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case d, ok := <-live:
			if !ok {
				return
			}
			if sent[draftKey{d.Agent, d.Stage, d.Version}] {
				continue
			}
			if !send(d) {
				return
			}
			if done(d) {
				closeNormally(conn)
				return
			}
		}
	}
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
