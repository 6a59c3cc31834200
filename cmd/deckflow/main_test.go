package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"deckflow/internal/types/deck"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := `
log_mode: prod
llm:
  provider: fake
pipeline:
  candidates: 1
  workers: 2
  out_dir: ` + filepath.Join(dir, "out") + `
  previews: false
artifact:
  backend: disk
  dir: ` + filepath.Join(dir, "artifacts") + `
audit:
  dir: ` + filepath.Join(dir, "drafts") + `
`
	path := filepath.Join(dir, "deckflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateWritesDeckAndDrafts(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "fake")
	path, dir := writeConfig(t)

	out, err := run(t, "generate", "--config", path, "--topic", "Edge caching", "--audience", "SREs", "--duration", "5")
	require.NoError(t, err)
	var res deck.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, deck.StatusSuccess, res.Status)
	require.Positive(t, res.SlideCount)
	require.FileExists(t, filepath.Join(dir, "artifacts", res.SessionID, "deck.html"))

	out, err = run(t, "drafts", "--config", path, res.SessionID)
	require.NoError(t, err)
	var drafts []deck.Draft
	require.NoError(t, json.Unmarshal([]byte(out), &drafts))
	require.NotEmpty(t, drafts)
	require.Equal(t, "result", drafts[len(drafts)-1].Stage)
}

func TestGenerateRequiresTopic(t *testing.T) {
	path, _ := writeConfig(t)
	_, err := run(t, "generate", "--config", path)
	require.Error(t, err)
}

func TestLayoutsListsBuiltin(t *testing.T) {
	path, _ := writeConfig(t)
	out, err := run(t, "layouts", "--config", path, "builtin:default")
	require.NoError(t, err)
	require.Contains(t, out, "Title and Content")
	require.True(t, strings.HasPrefix(out, "INDEX"))
}
