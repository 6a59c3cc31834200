// Package candidate runs several independent generations of the same task
// and keeps the best one.
package candidate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"deckflow/internal/deckerr"
	"deckflow/internal/logger"
	"deckflow/internal/types/deck"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Candidate is one generation result. It only lives during a Generate run.
type Candidate[T any] struct {
	Index   int
	Status  Status
	Payload T
	Score   float64
	Err     error
}

// Task produces one candidate. n is the candidate's index in [0, K).
type Task[T any] func(ctx context.Context, n int) (T, error)

// Recorder receives the winning candidate as a Draft.
type Recorder interface {
	Append(sessionID, agent, stage string, content any) deck.Draft
}

type Options[T any] struct {
	// K is the number of concurrent candidates; values below 1 mean 1.
	K     int
	Stage string
	Agent string
	// Score ranks successful candidates. It is not called when only one
	// candidate succeeded. A nil Score keeps the first success.
	Score     func(T) float64
	SessionID string
	Drafts    Recorder
	Log       *logger.Logger
}

// Generate runs K candidates concurrently. A failing candidate never cancels
// its siblings. When every candidate fails it returns NoValidCandidateError.
func Generate[T any](ctx context.Context, task Task[T], opts Options[T]) (T, error) {
	k := max(1, opts.K)
	cands := make([]Candidate[T], k)

	var g errgroup.Group
	for i := 0; i < k; i++ {
		g.Go(func() error {
			cands[i] = run(ctx, task, i)
			return nil
		})
	}
	_ = g.Wait()

	best, err := Select(opts.Stage, cands, opts.Score)
	log := logger.OrNop(opts.Log).With("stage", opts.Stage, "agent", opts.Agent)
	if err != nil {
		log.Warn("all candidates failed", "candidates", k, "error", err)
		var zero T
		return zero, err
	}
	log.Debug("candidate selected", "index", best.Index, "score", best.Score, "candidates", k)
	if opts.Drafts != nil {
		opts.Drafts.Append(opts.SessionID, opts.Agent, opts.Stage, best.Payload)
	}
	return best.Payload, nil
}

func run[T any](ctx context.Context, task Task[T], n int) (c Candidate[T]) {
	c.Index = n
	defer func() {
		if r := recover(); r != nil {
			c.Status, c.Err = StatusError, fmt.Errorf("candidate %d panicked: %v", n, r)
		}
	}()
	v, err := task(ctx, n)
	if err != nil {
		c.Status, c.Err = StatusError, err
		return c
	}
	c.Status, c.Payload = StatusSuccess, v
	return c
}

// Select filters failed candidates and returns the highest scoring success.
// Ties keep the lowest index. A single success is returned without scoring.
func Select[T any](stage string, cands []Candidate[T], score func(T) float64) (Candidate[T], error) {
	var ok []Candidate[T]
	var errs []error
	for _, c := range cands {
		if c.Status == StatusSuccess {
			ok = append(ok, c)
		} else if c.Err != nil {
			errs = append(errs, c.Err)
		}
	}
	switch {
	case len(ok) == 0:
		return Candidate[T]{}, &deckerr.NoValidCandidateError{Stage: stage, Attempts: len(cands), Errs: errs}
	case len(ok) == 1 || score == nil:
		return ok[0], nil
	}
	best := -1
	for i := range ok {
		ok[i].Score = score(ok[i].Payload)
		if best < 0 || ok[i].Score > ok[best].Score {
			best = i
		}
	}
	return ok[best], nil
}
