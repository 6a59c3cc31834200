package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// WeightFn returns the weight of a job by its integer ID.
type WeightFn func(id int) int

// JobRunner executes one job. Its error is recorded against the job and
// never cancels the others.
type JobRunner func(ctx context.Context, id int) error

type Params struct {
	// IDs are the jobs to run. Duplicates are rejected.
	IDs       []int
	WeightOf  WeightFn
	NParallel int
	Run       JobRunner
}

// Order returns the launch order: heavier first, then lower ID first.
func Order(ids []int, weightOf WeightFn) []int {
	out := append([]int(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := weightOf(out[i]), weightOf(out[j])
		if wi != wj {
			return wi > wj
		}
		return out[i] < out[j]
	})
	return out
}

// ScheduleHeavierStart runs every job on at most NParallel workers, starting
// the heaviest jobs first so the long tail does not land at the end. It
// returns per-job errors keyed by ID; the map is empty when all succeed.
// A canceled context stops launching new jobs and marks them with ctx.Err().
func ScheduleHeavierStart(ctx context.Context, p Params) (map[int]error, error) {
	if p.Run == nil {
		return nil, errors.New("Run callback is nil")
	}
	weightOf := p.WeightOf
	if weightOf == nil {
		weightOf = func(int) int { return 1 }
	}
	seen := make(map[int]struct{}, len(p.IDs))
	for _, id := range p.IDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate job id %d", id)
		}
		seen[id] = struct{}{}
	}
	nParallel := p.NParallel
	if nParallel <= 0 {
		nParallel = 1
	}

	results := make([]error, len(p.IDs))
	order := Order(p.IDs, weightOf)
	slot := make(map[int]int, len(order))
	for i, id := range p.IDs {
		slot[id] = i
	}

	var g errgroup.Group
	g.SetLimit(nParallel)
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			results[slot[id]] = err
			continue
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("job %d panicked: %v", id, r)
				}
				results[slot[id]] = err
			}()
			return p.Run(ctx, id)
		})
	}
	_ = g.Wait()

	failed := make(map[int]error)
	for i, err := range results {
		if err != nil {
			failed[p.IDs[i]] = err
		}
	}
	return failed, nil
}
