package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/FocuswithJustin/jwwconv/core/blocks"
	"github.com/FocuswithJustin/jwwconv/core/drawing"
	"github.com/FocuswithJustin/jwwconv/internal/archive"
)

// Report combines the audit, extents and statistics of one drawing.
type Report struct {
	SourcePath      string `json:"source_path"`
	SourceBLAKE3    string `json:"source_blake3,omitempty"`
	ExplodeInserts  bool   `json:"explode_inserts"`
	MaxBlockNesting int    `json:"max_block_nesting"`
	Audit           *Audit `json:"audit"`
	BBox            *BBox  `json:"bbox"`
	Stats           *Stats `json:"stats"`
}

// Conversion records the outcome of writing one drawing.
type Conversion struct {
	Source          string  `json:"source"`
	Output          string  `json:"output"`
	OK              bool    `json:"ok"`
	Error           *string `json:"error"`
	ExplodeInserts  bool    `json:"explode_inserts"`
	MaxBlockNesting int     `json:"max_block_nesting"`
	Audit           *Audit  `json:"audit"`
}

// AuditDrawing audits the build of d for opts.
func AuditDrawing(d *drawing.Drawing, opts drawing.ConvertOptions) (*Audit, error) {
	doc, err := d.Exchange(opts)
	if err != nil {
		return nil, err
	}
	var validation *blocks.ValidationReport
	if parsed := d.Document(); parsed != nil {
		validation = &parsed.Validation
	}
	return NewAudit(d.SourcePath(), validation, doc), nil
}

// DrawingBBox returns the extent of the top-level entities of d.
func DrawingBBox(d *drawing.Drawing, opts drawing.ConvertOptions) (*BBox, error) {
	doc, err := d.Exchange(opts)
	if err != nil {
		return nil, err
	}
	return ComputeBBox(doc.Entities), nil
}

// DrawingStats returns the statistics of the top-level entities of d.
func DrawingStats(d *drawing.Drawing, opts drawing.ConvertOptions) (*Stats, error) {
	doc, err := d.Exchange(opts)
	if err != nil {
		return nil, err
	}
	return ComputeStats(doc.Entities), nil
}

// New builds the combined report of d for opts.
func New(d *drawing.Drawing, opts drawing.ConvertOptions) (*Report, error) {
	audit, err := AuditDrawing(d, opts)
	if err != nil {
		return nil, err
	}
	doc, err := d.Exchange(opts)
	if err != nil {
		return nil, err
	}
	return &Report{
		SourcePath:      d.SourcePath(),
		SourceBLAKE3:    d.Identity(),
		ExplodeInserts:  opts.ExplodeInserts,
		MaxBlockNesting: opts.MaxBlockNesting,
		Audit:           audit,
		BBox:            ComputeBBox(doc.Entities),
		Stats:           ComputeStats(doc.Entities),
	}, nil
}

// NewConversion records a conversion of source to output. A nil err marks
// it successful.
func NewConversion(source, output string, opts drawing.ConvertOptions, audit *Audit, err error) *Conversion {
	c := &Conversion{
		Source:          source,
		Output:          output,
		OK:              err == nil,
		ExplodeInserts:  opts.ExplodeInserts,
		MaxBlockNesting: opts.MaxBlockNesting,
		Audit:           audit,
	}
	if err != nil {
		msg := err.Error()
		c.Error = &msg
	}
	return c
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Emit writes v as JSON to path, or to stdout when path is empty.
func Emit(v any, path string, stdout io.Writer) error {
	if path == "" {
		return WriteJSON(stdout, v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return archive.WriteFile(path, append(data, '\n'))
}
