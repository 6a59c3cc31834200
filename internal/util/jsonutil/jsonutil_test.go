package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	cases := map[string]struct{ in, want string }{
		"plain":   {`{"a":1}`, `{"a":1}`},
		"fenced":  {"```json\n{\"a\":1}\n```", `{"a":1}`},
		"prose":   {"Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		"bracket": {`result: {"a":"}"}`, `{"a":"}"}`},
		"escaped": {`x {"a":"say \"}\""} y`, `{"a":"say \"}\""}`},
		"array":   {"slides: [1, [2]] done", `[1,[2]]`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := Extract([]byte(tc.in))
			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(out))
		})
	}

	_, err := Extract([]byte("no json here"))
	require.ErrorIs(t, err, ErrNoJSON)
}

func TestUnmarshalRaw(t *testing.T) {
	var out struct {
		Title string `json:"title"`
	}
	require.NoError(t, UnmarshalRaw(json.RawMessage("```json\n{\"title\":\"a \\u003e b\"}\n```"), &out))
	require.Equal(t, "a > b", out.Title)

	var list []int
	require.NoError(t, UnmarshalRaw(json.RawMessage(`"[1,2]"`), &list))
	require.Equal(t, []int{1, 2}, list)

	require.Error(t, UnmarshalRaw(json.RawMessage("nope"), &out))
}

func TestMarshalNoEscapeIndent(t *testing.T) {
	b, err := MarshalNoEscapeIndent(map[string]string{"k": "<b>&"}, "", "  ")
	require.NoError(t, err)
	require.Equal(t, "{\n  \"k\": \"<b>&\"\n}", string(b))
}
