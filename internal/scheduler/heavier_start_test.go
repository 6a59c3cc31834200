package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestOrderHeavierFirst(t *testing.T) {
	w := map[int]int{0: 1, 1: 5, 2: 3, 3: 5}
	got := Order([]int{0, 1, 2, 3}, func(id int) int { return w[id] })
	require.Equal(t, []int{1, 3, 2, 0}, got)
}

func TestScheduleBoundsParallelism(t *testing.T) {
	defer goleak.VerifyNone(t)
	var inflight, peak int32
	var mu sync.Mutex
	var started []int

	failed, err := ScheduleHeavierStart(context.Background(), Params{
		IDs:       []int{0, 1, 2, 3, 4, 5},
		WeightOf:  func(id int) int { return id },
		NParallel: 2,
		Run: func(ctx context.Context, id int) error {
			mu.Lock()
			started = append(started, id)
			mu.Unlock()
			cur := atomic.AddInt32(&inflight, 1)
			defer atomic.AddInt32(&inflight, -1)
			for {
				p := atomic.LoadInt32(&peak)
				if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			return nil
		},
	})
	require.NoError(t, err)
	require.Empty(t, failed)
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	require.Len(t, started, 6)
	require.ElementsMatch(t, []int{5, 4}, started[:2])
}

func TestScheduleContainsFailures(t *testing.T) {
	defer goleak.VerifyNone(t)
	var ran int32
	failed, err := ScheduleHeavierStart(context.Background(), Params{
		IDs:       []int{0, 1, 2},
		NParallel: 3,
		Run: func(ctx context.Context, id int) error {
			atomic.AddInt32(&ran, 1)
			switch id {
			case 1:
				return errors.New("section failed")
			case 2:
				panic("boom")
			}
			return nil
		},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, ran)
	require.Len(t, failed, 2)
	require.EqualError(t, failed[1], "section failed")
	require.Contains(t, failed[2].Error(), "panicked")
}

func TestScheduleRejectsDuplicates(t *testing.T) {
	_, err := ScheduleHeavierStart(context.Background(), Params{
		IDs: []int{1, 1},
		Run: func(context.Context, int) error { return nil },
	})
	require.Error(t, err)
}

func TestScheduleCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	failed, err := ScheduleHeavierStart(ctx, Params{
		IDs: []int{0, 1},
		Run: func(context.Context, int) error { return nil },
	})
	require.NoError(t, err)
	require.ErrorIs(t, failed[0], context.Canceled)
	require.ErrorIs(t, failed[1], context.Canceled)
}
