package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"deckflow/internal/deckerr"
)

// mermaidHeaders is the diagram declaration expected for each catalog type.
var mermaidHeaders = map[string][]string{
	"flowchart": {"flowchart", "graph"},
	"hierarchy": {"flowchart", "graph", "mindmap"},
	"timeline":  {"timeline"},
	"cycle":     {"flowchart", "graph", "stateDiagram"},
	"pie":       {"pie"},
	"bar":       {"xychart-beta"},
	"line":      {"xychart-beta"},
}

// MermaidRenderer shells out to the mermaid CLI (mmdc).
type MermaidRenderer struct {
	CLI           string
	Width, Height int
}

func NewMermaidRenderer(cli string) *MermaidRenderer {
	if cli == "" {
		cli = "mmdc"
	}
	return &MermaidRenderer{CLI: cli, Width: 1200, Height: 800}
}

func (m *MermaidRenderer) Render(ctx context.Context, markup, outputPath string) error {
	return m.RenderSized(ctx, markup, outputPath, m.Width, m.Height)
}

func (m *MermaidRenderer) RenderSized(ctx context.Context, markup, outputPath string, width, height int) error {
	markup = strings.TrimSpace(markup)
	if markup == "" {
		return &deckerr.RenderError{Message: "empty mermaid markup"}
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	src, err := os.CreateTemp("", "deckflow-*.mmd")
	if err != nil {
		return err
	}
	defer os.Remove(src.Name())
	if _, err := src.WriteString(markup); err != nil {
		src.Close()
		return err
	}
	if err := src.Close(); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, m.CLI,
		"-i", src.Name(), "-o", outputPath,
		"-w", strconv.Itoa(width), "-H", strconv.Itoa(height),
		"-b", "white")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &deckerr.RenderError{Type: firstWord(markup), Message: strings.TrimSpace(stderr.String())}
		}
		return fmt.Errorf("run %s: %w", m.CLI, err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return &deckerr.RenderError{Type: firstWord(markup), Message: "mermaid produced no output"}
	}
	return nil
}

func (m *MermaidRenderer) Syntax(diagramType string) string {
	heads := mermaidHeaders[diagramType]
	if len(heads) == 0 {
		return "Mermaid diagram source"
	}
	return fmt.Sprintf("Mermaid source as a single JSON string, starting with one of: %s", strings.Join(heads, ", "))
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
