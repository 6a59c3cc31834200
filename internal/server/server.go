// Package server exposes deck generation over HTTP: connect unary handlers
// with a JSON codec and a websocket stream of drafts.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"deckflow/internal/audit"
	"deckflow/internal/logger"
	"deckflow/internal/pipeline"
	"deckflow/internal/session"
	"deckflow/internal/types/deck"
)

const (
	ServiceName         = "deckflow.v1.DeckService"
	GenerateProcedure   = "/" + ServiceName + "/Generate"
	GetSessionProcedure = "/" + ServiceName + "/GetSession"
	ListDraftsProcedure = "/" + ServiceName + "/ListDrafts"
	DraftsStreamPath    = "/ws/drafts"
)

type GenerateResponse struct {
	SessionID string `json:"session_id"`
}

type GetSessionRequest struct {
	SessionID string `json:"session_id"`
}

type SessionState string

const (
	StateRunning SessionState = "running"
	StateSuccess SessionState = "success"
	StateError   SessionState = "error"
)

type GetSessionResponse struct {
	State   SessionState     `json:"state"`
	Session session.Snapshot `json:"session"`
}

type ListDraftsRequest struct {
	SessionID string `json:"session_id"`
	// IncludePrompts adds the archived prompt/response drafts.
	IncludePrompts bool `json:"include_prompts,omitempty"`
}

type ListDraftsResponse struct {
	Drafts []deck.Draft `json:"drafts"`
}

// Server runs generations in the background; Close cancels and waits for
// them.
type Server struct {
	orch     *pipeline.Orchestrator
	sessions *session.Registry
	audit    *audit.Log
	log      *logger.Logger
	// RunTimeout bounds one generation; zero means no bound.
	RunTimeout time.Duration

	runCtx context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
}

func New(orch *pipeline.Orchestrator, sessions *session.Registry, drafts *audit.Log, log *logger.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{orch: orch, sessions: sessions, audit: drafts, log: logger.OrNop(log), runCtx: ctx, stop: cancel}
}

// Handler routes the API. It speaks HTTP/1.1 and cleartext HTTP/2.
func (s *Server) Handler() http.Handler {
	opts := []connect.HandlerOption{connect.WithCodec(jsonCodec{})}
	mux := http.NewServeMux()
	mux.Handle(GenerateProcedure, connect.NewUnaryHandler(GenerateProcedure, s.Generate, opts...))
	mux.Handle(GetSessionProcedure, connect.NewUnaryHandler(GetSessionProcedure, s.GetSession, opts...))
	mux.Handle(ListDraftsProcedure, connect.NewUnaryHandler(ListDraftsProcedure, s.ListDrafts, opts...))
	mux.HandleFunc(DraftsStreamPath, s.handleDraftsWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return h2c.NewHandler(withCORS(mux), &http2.Server{})
}

// Generate validates the request and starts the run asynchronously.
func (s *Server) Generate(_ context.Context, req *connect.Request[deck.Request]) (*connect.Response[GenerateResponse], error) {
	if err := req.Msg.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := s.runCtx.Err(); err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("server is shutting down"))
	}
	store := s.sessions.Create(*req.Msg)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := s.runCtx
		if s.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.RunTimeout)
			defer cancel()
		}
		res := s.orch.Run(ctx, store)
		s.log.Info("generation done", "session", store.ID(), "status", res.Status)
	}()
	return connect.NewResponse(&GenerateResponse{SessionID: store.ID()}), nil
}

func (s *Server) GetSession(_ context.Context, req *connect.Request[GetSessionRequest]) (*connect.Response[GetSessionResponse], error) {
	store, err := s.lookup(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	out := &GetSessionResponse{State: StateRunning, Session: store.Snapshot()}
	if res, ok := store.Result(); ok {
		out.State = StateSuccess
		if res.Status == deck.StatusError {
			out.State = StateError
		}
	}
	return connect.NewResponse(out), nil
}

func (s *Server) ListDrafts(_ context.Context, req *connect.Request[ListDraftsRequest]) (*connect.Response[ListDraftsResponse], error) {
	id := strings.TrimSpace(req.Msg.SessionID)
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("session_id is required"))
	}
	drafts := s.audit.List(id)
	if len(drafts) == 0 {
		var err error
		if drafts, err = s.audit.Read(id); err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
	}
	if _, live := s.sessions.Get(id); !live && len(drafts) == 0 {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %s not found", id))
	}
	out := make([]deck.Draft, 0, len(drafts))
	for _, d := range drafts {
		if req.Msg.IncludePrompts || d.Stage != audit.StagePrompt {
			out = append(out, d)
		}
	}
	return connect.NewResponse(&ListDraftsResponse{Drafts: out}), nil
}

func (s *Server) lookup(id string) (*session.Store, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("session_id is required"))
	}
	store, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %s not found", id))
	}
	return store, nil
}

// Close cancels running generations and waits for them to finish.
func (s *Server) Close() {
	s.stop()
	s.wg.Wait()
}

// Wait blocks until every started generation has finished.
func (s *Server) Wait() { s.wg.Wait() }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("api listening", "addr", addr)

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if e := <-errCh; !errors.Is(e, http.ErrServerClosed) && err == nil {
		err = e
	}
	return err
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
