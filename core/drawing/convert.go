// Package drawing is the entry point for reading Jw_cad drawings and
// converting them to DXF. The functions in this file are stateless; the
// Drawing type adds source identity and build caching on top.
package drawing

import (
	"github.com/FocuswithJustin/jwwconv/core/blocks"
	"github.com/FocuswithJustin/jwwconv/core/dxf"
	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/core/explode"
	"github.com/FocuswithJustin/jwwconv/core/jww"
	"github.com/FocuswithJustin/jwwconv/internal/archive"
)

// ConvertOptions controls how block insertions are handled.
type ConvertOptions struct {
	// ExplodeInserts replaces resolvable insertions with transformed
	// copies of the block contents.
	ExplodeInserts bool `json:"explode_inserts"`
	// MaxBlockNesting bounds the depth of each expansion path. Must be >= 1.
	MaxBlockNesting int `json:"max_block_nesting"`
}

// DefaultConvertOptions keeps insertions and uses the default nesting bound.
func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{MaxBlockNesting: explode.DefaultMaxNesting}
}

// Validate rejects a nesting bound below 1.
func (o ConvertOptions) Validate() error {
	return o.expand().Validate()
}

func (o ConvertOptions) expand() explode.Options {
	return explode.Options{Explode: o.ExplodeInserts, MaxNesting: o.MaxBlockNesting}
}

// BlockSummary describes one block definition without its contents.
type BlockSummary struct {
	Number       uint32 `json:"number"`
	Name         string `json:"name"`
	IsReferenced bool   `json:"is_referenced"`
	EntityCount  int    `json:"entity_count"`
}

// Document is a parsed drawing with its block references validated.
type Document struct {
	Header *jww.Header `json:"header"`
	// EntityCounts tallies top-level entities by kind.
	EntityCounts map[string]int          `json:"entity_counts"`
	Entities     []jww.Entity            `json:"-"`
	BlockDefs    []*jww.BlockDef         `json:"-"`
	Blocks       *blocks.Table           `json:"-"`
	Summaries    []BlockSummary          `json:"block_defs"`
	Validation   blocks.ValidationReport `json:"validation"`
	Warnings     []string                `json:"warnings"`

	source *jww.Drawing
}

// EntityTotal returns the number of top-level entities.
func (d *Document) EntityTotal() int {
	return len(d.Entities)
}

// Probe reports whether src looks like a Jw_cad drawing. It never fails.
func Probe(src []byte) bool {
	return jww.Probe(src)
}

// Parse decodes src and validates its block references.
func Parse(src []byte) (*Document, error) {
	d, err := jww.Decode(src)
	if err != nil {
		return nil, err
	}
	return newDocument(d), nil
}

func newDocument(d *jww.Drawing) *Document {
	table, dupes := blocks.NewTable(d.BlockDefs)
	doc := &Document{
		Header:       d.Header,
		EntityCounts: jww.CountKinds(d.Entities),
		Entities:     d.Entities,
		BlockDefs:    d.BlockDefs,
		Blocks:       table,
		Summaries:    make([]BlockSummary, 0, len(d.BlockDefs)),
		Validation:   blocks.Validate(d.Entities, table),
		Warnings:     append(append([]string{}, d.Warnings...), dupes...),
		source:       d,
	}
	for _, def := range d.BlockDefs {
		doc.Summaries = append(doc.Summaries, BlockSummary{
			Number:       def.Number,
			Name:         def.Name,
			IsReferenced: def.IsReferenced,
			EntityCount:  len(def.Entities),
		})
	}
	return doc
}

// ParseHeader decodes only the header of src.
func ParseHeader(src []byte) (*jww.Header, error) {
	return jww.DecodeHeader(src)
}

// Convert decodes src and builds the DXF document. Options are checked
// before src is looked at.
func Convert(src []byte, opts ConvertOptions) (*dxf.Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	doc, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return doc.Exchange(opts)
}

// Exchange builds the DXF document for an already parsed drawing.
func (d *Document) Exchange(opts ConvertOptions) (*dxf.Document, error) {
	return dxf.Build(d.source, d.Blocks, opts.expand())
}

// Render converts src and returns the DXF text.
func Render(src []byte, opts ConvertOptions) (string, error) {
	doc, err := Convert(src, opts)
	if err != nil {
		return "", err
	}
	return dxf.String(doc), nil
}

// ConvertAndWrite converts src and writes the DXF text to dst. A .xz
// suffix on dst compresses the output. Nothing is written on failure.
func ConvertAndWrite(src []byte, dst string, opts ConvertOptions) error {
	doc, err := Convert(src, opts)
	if err != nil {
		return err
	}
	return writeExchange(doc, dst)
}

func writeExchange(doc *dxf.Document, dst string) error {
	if err := archive.WriteFile(dst, dxf.Marshal(doc)); err != nil {
		return errors.NewIO("write", dst, err)
	}
	return nil
}

// readSource loads a drawing from disk, decompressing .xz files.
func readSource(path string) ([]byte, error) {
	data, err := archive.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return data, nil
}

// ProbeFile reports whether the file at path looks like a Jw_cad drawing.
// Only I/O failures are returned as errors.
func ProbeFile(path string) (bool, error) {
	data, err := readSource(path)
	if err != nil {
		return false, err
	}
	return Probe(data), nil
}

// ParseFile is Parse on the contents of path.
func ParseFile(path string) (*Document, error) {
	data, err := readSource(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// ParseHeaderFile is ParseHeader on the contents of path.
func ParseHeaderFile(path string) (*jww.Header, error) {
	data, err := readSource(path)
	if err != nil {
		return nil, err
	}
	return ParseHeader(data)
}

// ConvertFile is Convert on the contents of path.
func ConvertFile(path string, opts ConvertOptions) (*dxf.Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	data, err := readSource(path)
	if err != nil {
		return nil, err
	}
	return Convert(data, opts)
}

// RenderFile is Render on the contents of path.
func RenderFile(path string, opts ConvertOptions) (string, error) {
	doc, err := ConvertFile(path, opts)
	if err != nil {
		return "", err
	}
	return dxf.String(doc), nil
}

// ConvertFileAndWrite converts the drawing at src and writes it to dst.
func ConvertFileAndWrite(src, dst string, opts ConvertOptions) error {
	doc, err := ConvertFile(src, opts)
	if err != nil {
		return err
	}
	return writeExchange(doc, dst)
}
