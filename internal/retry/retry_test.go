package retry

import (
	"context"
	"errors"
	"testing"

	"deckflow/internal/deckerr"

	"github.com/stretchr/testify/require"
)

func TestDoRetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0
	out, err := Do(context.Background(), 3, func(_ context.Context, attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", deckerr.Generation("test", errors.New("flaky"))
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnFatal(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), 5, func(context.Context, int) (int, error) {
		calls++
		return 0, errors.New("fatal")
	})
	require.EqualError(t, err, "fatal")
	require.Equal(t, 1, calls)
}

func TestDoReturnsLastErrorOnExhaustion(t *testing.T) {
	var retried []int
	_, err := Do(context.Background(), 2, func(_ context.Context, attempt int) (int, error) {
		return 0, &deckerr.RenderError{Type: "pie", Message: "attempt"}
	}, Options{OnRetry: func(attempt int, _ error) { retried = append(retried, attempt) }})

	var re *deckerr.RenderError
	require.ErrorAs(t, err, &re)
	require.Equal(t, []int{1}, retried)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, 3, func(context.Context, int) (int, error) {
		calls++
		return 1, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}
