package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/FocuswithJustin/jwwconv/internal/report"
)

// env carries the process context and output streams into commands.
type env struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	styles *styles
}

// styles renders keys and status words. Colours are dropped when stdout
// is not a terminal.
type styles struct {
	key  lipgloss.Style
	ok   lipgloss.Style
	bad  lipgloss.Style
	path lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	return &styles{
		key:  r.NewStyle().Bold(true),
		ok:   r.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		bad:  r.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true),
		path: r.NewStyle().Foreground(lipgloss.Color("#06B6D4")),
	}
}

func newEnv(ctx context.Context, stdout, stderr io.Writer) *env {
	return &env{ctx: ctx, stdout: stdout, stderr: stderr, styles: newStyles(stdout)}
}

// field prints one "key: value" line.
func (e *env) field(key string, value any) {
	fmt.Fprintf(e.stdout, "%s: %v\n", e.styles.key.Render(key), value)
}

// flag renders a boolean, highlighting true as a problem.
func (e *env) flag(v bool) string {
	if v {
		return e.styles.bad.Render("true")
	}
	return e.styles.ok.Render("false")
}

func (e *env) file(path string) string {
	return e.styles.path.Render(path)
}

// failf reports a per-file failure on stderr.
func (e *env) failf(format string, args ...any) {
	fmt.Fprintf(e.stderr, format+"\n", args...)
}

func (e *env) json(v any) error {
	return report.WriteJSON(e.stdout, v)
}

// list formats values as [a b c].
func list[T any](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatBBox(b *report.BBox, withSize bool) string {
	if b == nil {
		return "none"
	}
	s := fmt.Sprintf("min=(%.6f, %.6f) max=(%.6f, %.6f)", b.MinX, b.MinY, b.MaxX, b.MaxY)
	if withSize {
		s += fmt.Sprintf(" size=(%.6f, %.6f) entities=%d", b.Width, b.Height, b.EntityCount)
	}
	return s
}

// counts formats a tally as {K: n, ...} in key order.
func counts[K string | int](c report.Counts[K]) string {
	parts := make([]string, 0, len(c))
	for _, k := range c.Keys() {
		parts = append(parts, fmt.Sprintf("%v: %d", k, c[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
