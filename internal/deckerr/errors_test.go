package deckerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	llmclient "deckflow/internal/llmClient"

	"github.com/stretchr/testify/require"
)

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"generation", Generation("outline", errors.New("503")), true},
		{"schema", SchemaParse("outline", []byte("{"), errors.New("eof")), true},
		{"render", &RenderError{Type: "pie", Message: "no values"}, true},
		{"overflow", &FitOverflowError{Placeholder: 1}, true},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"canceled", Generation("outline", context.Canceled), false},
		{"permanent", Generation("outline", llmclient.NewPermanentError(errors.New("bad key"))), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Retryable(tc.err))
		})
	}
}

func TestNoValidCandidateUnwrapsEveryFailure(t *testing.T) {
	first := &RenderError{Type: "bar", Message: "empty"}
	err := &NoValidCandidateError{Stage: "content", Attempts: 2, Errs: []error{errors.New("x"), first}}

	var re *RenderError
	require.ErrorAs(t, err, &re)
	require.Same(t, first, re)
	require.Contains(t, err.Error(), "content")
	require.Contains(t, err.Error(), "2 attempts")
}
