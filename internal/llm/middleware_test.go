package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deckflow/internal/deckerr"
	llmclient "deckflow/internal/llmClient"
)

type fastClient struct{ calls int32 }

func (f *fastClient) Name() string { return "fast" }
func (f *fastClient) Close() error { return nil }
func (f *fastClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	atomic.AddInt32(&f.calls, 1)
	return json.RawMessage(`{}`), nil
}

type failingClient struct {
	calls int32
	err   error
}

func (f *failingClient) Name() string { return "failing" }
func (f *failingClient) Close() error { return nil }
func (f *failingClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	atomic.AddInt32(&f.calls, 1)
	return nil, f.err
}

type slowClient struct{}

func (slowClient) Name() string { return "slow" }
func (slowClient) Close() error { return nil }
func (slowClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRateLimitThrottles(t *testing.T) {
	inner := &fastClient{}
	cli := Wrap(inner, RateLimit(10, 1))
	defer cli.Close()

	start := time.Now()
	for i := 0; i < 6; i++ {
		_, err := cli.GenerateJSON(context.Background(), "p", nil)
		require.NoError(t, err)
	}
	// one token pre-filled, five refills at 100ms each
	require.GreaterOrEqual(t, time.Since(start), 450*time.Millisecond)
	require.EqualValues(t, 6, atomic.LoadInt32(&inner.calls))
}

func TestRateLimitDisabled(t *testing.T) {
	cli := Wrap(&fastClient{}, RateLimit(0, 0))
	start := time.Now()
	for i := 0; i < 20; i++ {
		_, err := cli.GenerateJSON(context.Background(), "p", nil)
		require.NoError(t, err)
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterHonoursCancellation(t *testing.T) {
	l := NewLimiter(0.001, 1)
	require.NoError(t, l.Acquire(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Acquire(ctx))

	canceled, stop := context.WithCancel(context.Background())
	stop()
	require.ErrorIs(t, NewLimiter(0, 0).Acquire(canceled), context.Canceled)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	inner := &failingClient{err: llmclient.NewPermanentError(errors.New("bad key"))}
	cli := Wrap(inner, Retry(5, time.Millisecond))
	_, err := cli.GenerateJSON(context.Background(), "p", nil)
	require.Error(t, err)
	require.EqualValues(t, 1, inner.calls)
}

func TestRetryExhausts(t *testing.T) {
	inner := &failingClient{err: errors.New("503")}
	cli := Wrap(inner, Retry(3, time.Millisecond))
	_, err := cli.GenerateJSON(context.Background(), "p", nil)
	require.EqualError(t, err, "503")
	require.EqualValues(t, 3, inner.calls)
}

func TestTimeoutBecomesGenerationError(t *testing.T) {
	cli := Wrap(slowClient{}, Timeout(20*time.Millisecond))
	ctx := llmclient.WithPhase(context.Background(), "outline")
	_, err := cli.GenerateJSON(ctx, "p", nil)

	var gen *deckerr.GenerationError
	require.ErrorAs(t, err, &gen)
	require.Equal(t, "outline", gen.Stage)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, deckerr.Retryable(err))
}

func TestTimeoutKeepsParentCancellation(t *testing.T) {
	cli := Wrap(slowClient{}, Timeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cli.GenerateJSON(ctx, "p", nil)
	require.ErrorIs(t, err, context.Canceled)
}

type recordingHook struct {
	before, after []string
}

func (h *recordingHook) Before(_ context.Context, phase, _ string, _ any) {
	h.before = append(h.before, phase)
}
func (h *recordingHook) After(_ context.Context, phase string, _ json.RawMessage, _ error) {
	h.after = append(h.after, phase)
}

func TestHooksWrapCall(t *testing.T) {
	hook := &recordingHook{}
	ctx := WithHook(llmclient.WithPhase(context.Background(), "content"), hook)
	cli := Wrap(&fastClient{}, WithHooks())
	_, err := cli.GenerateJSON(ctx, "p", map[string]any{"a": 1})
	require.NoError(t, err)
	require.Equal(t, []string{"content"}, hook.before)
	require.Equal(t, []string{"content"}, hook.after)

	// hooks stack
	second := &recordingHook{}
	_, err = cli.GenerateJSON(WithHook(ctx, second), "p", nil)
	require.NoError(t, err)
	require.Len(t, hook.before, 2)
	require.Equal(t, []string{"content"}, second.after)

	// no hook in context is a no-op
	_, err = cli.GenerateJSON(context.Background(), "p", nil)
	require.NoError(t, err)
}

func TestRedactMedia(t *testing.T) {
	in := map[string]any{
		"text":  "hello",
		"image": "data:image/png;base64,iVBORw0KGgo=",
		"list":  []any{"ok", "<img src=\"data:image/png;base64,AAAA\">"},
	}
	out := RedactMedia(in).(map[string]any)
	require.Equal(t, "hello", out["text"])
	require.Equal(t, "[REDACTED media]", out["image"])
	require.Equal(t, []any{"ok", "[REDACTED media]"}, out["list"])
}

func TestRedactMediaShortensLongText(t *testing.T) {
	long := strings.Repeat("slide text ", 3000)
	got := RedactMedia(long).(string)
	require.Less(t, len(got), len(long))
	require.Contains(t, got, "bytes omitted]")
	require.Equal(t, 42, RedactMedia(42))
}
