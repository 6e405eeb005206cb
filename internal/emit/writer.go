package emit

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Header describes the comment block at the top of the script.
type Header struct {
	Tool        string
	RunID       string
	GeneratedAt time.Time
}

// Lines returns the header as SQL comments. Empty fields are omitted.
func (h Header) Lines() []string {
	tool := h.Tool
	if tool == "" {
		tool = "peak-enrich"
	}
	lines := []string{"-- Auto-generated by " + tool}
	if h.RunID != "" {
		lines = append(lines, "-- Run: "+h.RunID)
	}
	if !h.GeneratedAt.IsZero() {
		lines = append(lines, "-- Generated at: "+h.GeneratedAt.UTC().Format(time.RFC3339))
	}
	return lines
}

// Render returns the full script: header, BEGIN, the updates, the geometry
// rebuild and COMMIT.
func Render(b *Builder, h Header) string {
	var sb strings.Builder
	for _, l := range h.Lines() {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	sb.WriteString("BEGIN;\n\n")
	for _, u := range b.updates {
		sb.WriteString(u)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	sb.WriteString(GeomRebuildComment)
	sb.WriteByte('\n')
	sb.WriteString(GeomRebuildSQL)
	sb.WriteByte('\n')
	sb.WriteString("\nCOMMIT;\n")
	return sb.String()
}

// WriteFile renders the script and overwrites path, creating the parent
// directory if needed. A missing RunID is filled with a fresh UUID.
func WriteFile(path string, b *Builder, h Header) error {
	if path == "" {
		return eris.New("emit: output path is empty")
	}
	if h.RunID == "" {
		h.RunID = uuid.NewString()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "emit: create dir %s", dir)
		}
	}
	if err := os.WriteFile(path, []byte(Render(b, h)), 0o644); err != nil {
		return eris.Wrapf(err, "emit: write %s", path)
	}
	return nil
}
