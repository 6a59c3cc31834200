// Package config loads deckflow settings from defaults, an optional YAML
// file, .env and the process environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"deckflow/internal/artifact"
	"deckflow/internal/fit"
	"deckflow/internal/scoring"
)

type Config struct {
	Env  string `yaml:"env"`
	Port string `yaml:"port"`
	// LogMode is "prod" for JSON logs, anything else for console logs.
	LogMode string `yaml:"log_mode"`

	LLM       LLMConfig       `yaml:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Assets    AssetConfig     `yaml:"assets"`
	Artifact  artifact.Config `yaml:"artifact"`
	Templates TemplateConfig  `yaml:"templates"`
	Audit     AuditConfig     `yaml:"audit"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	RPS      float64       `yaml:"rps"`
	Burst    int           `yaml:"burst"`
	Timeout  time.Duration `yaml:"timeout"`
	// Retries is the transport-level retry budget inside one stage attempt.
	Retries int `yaml:"retries"`
}

type PipelineConfig struct {
	Candidates   int                    `yaml:"candidates"`
	Workers      int                    `yaml:"workers"`
	StageRetries int                    `yaml:"stage_retries"`
	FitRetries   int                    `yaml:"fit_retries"`
	OutDir       string                 `yaml:"out_dir"`
	Fonts        fit.Fonts              `yaml:"fonts"`
	Outline      scoring.OutlineWeights `yaml:"outline_weights"`
	Content      scoring.ContentWeights `yaml:"content_weights"`
	Previews     bool                   `yaml:"previews"`
}

type AssetConfig struct {
	DiagramTypes  []string      `yaml:"diagram_types"`
	Renderer      string        `yaml:"renderer"`
	MermaidCLI    string        `yaml:"mermaid_cli"`
	SearxngURL    string        `yaml:"searxng_url"`
	ImageRetries  int           `yaml:"image_retries"`
	RenderTimeout time.Duration `yaml:"render_timeout"`
	SearchRPS     float64       `yaml:"search_rps"`
}

type TemplateConfig struct {
	CacheSize int `yaml:"cache_size"`
}

type AuditConfig struct {
	// Dir holds one JSONL file per session; empty keeps drafts in memory.
	Dir string `yaml:"dir"`
}

func Default() Config {
	return Config{
		Env:     "local",
		Port:    ":8081",
		LogMode: "dev",
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Burst:    1,
			Timeout:  90 * time.Second,
			Retries:  2,
		},
		Pipeline: PipelineConfig{
			Candidates:   3,
			Workers:      4,
			StageRetries: 3,
			FitRetries:   3,
			OutDir:       "out",
			Fonts:        fit.DefaultFonts(),
			Outline:      scoring.DefaultOutlineWeights(),
			Content:      scoring.DefaultContentWeights(),
			Previews:     true,
		},
		Assets: AssetConfig{
			DiagramTypes:  []string{"flowchart", "hierarchy", "timeline", "cycle", "pie", "bar", "line"},
			Renderer:      "chart",
			MermaidCLI:    "mmdc",
			ImageRetries:  3,
			RenderTimeout: 60 * time.Second,
			SearchRPS:     1,
		},
		Artifact: artifact.Config{
			Backend: "disk",
			Dir:     "out/artifacts",
		},
		Templates: TemplateConfig{CacheSize: 32},
		Audit:     AuditConfig{Dir: "out/drafts"},
	}
}

// Load applies defaults, then the YAML file at path (skipped when empty),
// then .env and environment variables.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type lookupFn func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFn) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}

	str("APP_ENV", &c.Env)
	str("LOG_MODE", &c.LogMode)
	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		c.Port = strings.TrimSpace(v)
	}
	if !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_MODEL", &c.LLM.Model)
	str("OPENAI_BASE_URL", &c.LLM.BaseURL)
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini":
		str("GEMINI_API_KEY", &c.LLM.APIKey)
	case "openai":
		str("OPENAI_API_KEY", &c.LLM.APIKey)
	}
	float("LLM_RPS", &c.LLM.RPS)
	num("LLM_BURST", &c.LLM.Burst)
	dur("LLM_TIMEOUT", &c.LLM.Timeout)

	num("DECK_CANDIDATES", &c.Pipeline.Candidates)
	num("DECK_WORKERS", &c.Pipeline.Workers)
	str("DECK_OUT_DIR", &c.Pipeline.OutDir)

	str("ARTIFACT_BACKEND", &c.Artifact.Backend)
	str("ARTIFACT_DIR", &c.Artifact.Dir)
	str("ARTIFACT_S3_ENDPOINT", &c.Artifact.S3.Endpoint)
	str("ARTIFACT_S3_REGION", &c.Artifact.S3.Region)
	str("ARTIFACT_S3_ACCESS_KEY", &c.Artifact.S3.AccessKey)
	str("ARTIFACT_S3_SECRET_KEY", &c.Artifact.S3.SecretKey)
	str("ARTIFACT_S3_BUCKET", &c.Artifact.S3.Bucket)
	boolean("ARTIFACT_S3_USE_SSL", &c.Artifact.S3.UseSSL)
	boolean("ARTIFACT_CACHE", &c.Artifact.Cache)
	str("DATABASE_URL", &c.Artifact.DatabaseURL)
	str("REDIS_ADDR", &c.Artifact.RedisAddr)

	str("SEARXNG_URL", &c.Assets.SearxngURL)
	str("MERMAID_CLI", &c.Assets.MermaidCLI)
	str("DIAGRAM_RENDERER", &c.Assets.Renderer)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []string
	if c.Pipeline.Candidates < 1 {
		errs = append(errs, "pipeline.candidates must be positive")
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, "pipeline.workers must be positive")
	}
	if c.Pipeline.StageRetries < 1 {
		errs = append(errs, "pipeline.stage_retries must be positive")
	}
	if c.Pipeline.FitRetries < 0 {
		errs = append(errs, "pipeline.fit_retries must not be negative")
	}
	if c.LLM.Timeout < 0 {
		errs = append(errs, "llm.timeout must not be negative")
	}
	known := false
	for _, b := range artifact.Backends {
		if strings.EqualFold(c.Artifact.Backend, b) {
			known = true
		}
	}
	if !known {
		errs = append(errs, fmt.Sprintf("unknown artifact backend %q", c.Artifact.Backend))
	}
	switch strings.ToLower(c.Assets.Renderer) {
	case "chart", "mermaid":
	default:
		errs = append(errs, fmt.Sprintf("unknown diagram renderer %q", c.Assets.Renderer))
	}
	if len(c.Assets.DiagramTypes) == 0 {
		errs = append(errs, "assets.diagram_types must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
