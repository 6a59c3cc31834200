package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 3, cfg.Pipeline.Candidates)
	require.Equal(t, 4, cfg.Pipeline.Workers)
	require.Equal(t, 24.0, cfg.Pipeline.Fonts.TitlePt)
	require.Equal(t, 18.0, cfg.Pipeline.Fonts.BodyPt)
	require.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	require.Len(t, cfg.Assets.DiagramTypes, 7)
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deckflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  model: gpt-4o-mini
  timeout: 30s
pipeline:
  candidates: 5
  fonts:
    title_pt: 32
assets:
  diagram_types: [bar, pie]
`), 0o644))
	t.Setenv("DECK_CANDIDATES", "2")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "openai", cfg.LLM.Provider)
	require.Equal(t, "sk-test", cfg.LLM.APIKey)
	require.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	require.Equal(t, 2, cfg.Pipeline.Candidates)
	require.Equal(t, 32.0, cfg.Pipeline.Fonts.TitlePt)
	require.Equal(t, 18.0, cfg.Pipeline.Fonts.BodyPt)
	require.Equal(t, []string{"bar", "pie"}, cfg.Assets.DiagramTypes)
	require.Equal(t, ":9090", cfg.Port)
}

func TestEnvParseErrors(t *testing.T) {
	cfg := Default()
	env := map[string]string{"DECK_WORKERS": "many", "LLM_TIMEOUT": "soon"}
	err := cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	require.ErrorContains(t, err, "DECK_WORKERS")
	require.ErrorContains(t, err, "LLM_TIMEOUT")
}

func TestValidateRejects(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Workers = 0
	cfg.Artifact.Backend = "tape"
	cfg.Assets.Renderer = "ascii"
	err := cfg.Validate()
	require.ErrorContains(t, err, "workers")
	require.ErrorContains(t, err, "tape")
	require.ErrorContains(t, err, "ascii")
}
