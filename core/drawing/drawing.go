package drawing

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/FocuswithJustin/jwwconv/core/cache"
	"github.com/FocuswithJustin/jwwconv/core/cas"
	"github.com/FocuswithJustin/jwwconv/core/dxf"
	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/core/jww"
	"github.com/FocuswithJustin/jwwconv/internal/archive"
	"github.com/FocuswithJustin/jwwconv/internal/logging"
)

// sharedCache holds exchange documents for every open drawing, keyed by
// source identity, so two drawings with equal bytes share builds.
var sharedCache = cache.NewDefaultExchangeCache()

// Drawing is a parsed source with cached exchange builds. It is safe for
// concurrent use.
type Drawing struct {
	path     string
	identity string
	doc      *Document
	cache    *cache.ExchangeCache
	builds   singleflight.Group
}

// Open reads and parses the drawing at path. Compressed .xz sources are
// decompressed first.
func Open(path string) (*Drawing, error) {
	data, err := readSource(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(path, data)
}

// FromBytes parses data as the drawing named name. The name is used only
// for reporting.
func FromBytes(name string, data []byte) (*Drawing, error) {
	data, err := archive.Decompress(data)
	if err != nil {
		return nil, errors.NewIO("decompress", name, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(name), err)
	}
	for _, w := range doc.Warnings {
		logging.DecodeWarning(name, w)
	}
	return &Drawing{
		path:     name,
		identity: cas.Identity(data),
		doc:      doc,
		cache:    sharedCache,
	}, nil
}

// New returns an empty drawing with no source. Its exchange document has
// no layers, blocks or entities.
func New() *Drawing {
	return &Drawing{cache: sharedCache}
}

// SourcePath returns the path or name the drawing was read from, or ""
// for a drawing created with New.
func (d *Drawing) SourcePath() string {
	return d.path
}

// Identity returns the BLAKE3 hex digest of the source bytes.
func (d *Drawing) Identity() string {
	return d.identity
}

// HasSource reports whether the drawing was read from a source.
func (d *Drawing) HasSource() bool {
	return d.doc != nil
}

// Document returns the parsed document, or nil for a drawing without a
// source.
func (d *Drawing) Document() *Document {
	return d.doc
}

// Header returns the drawing header, or nil for a drawing without a
// source.
func (d *Drawing) Header() *jww.Header {
	if d.doc == nil {
		return nil
	}
	return d.doc.Header
}

// Exchange returns the DXF document for opts. Builds are cached per
// (identity, options) and concurrent requests for the same build share
// one computation. Callers must not modify the result.
func (d *Drawing) Exchange(opts ConvertOptions) (*dxf.Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if d.doc == nil {
		return dxf.Build(nil, nil, opts.expand())
	}

	key := cache.ExchangeKey{
		Identity:   d.identity,
		Explode:    opts.ExplodeInserts,
		MaxNesting: opts.MaxBlockNesting,
	}
	if doc, ok := d.cache.Get(key); ok {
		return doc, nil
	}

	v, err, _ := d.builds.Do(fmt.Sprintf("%t/%d", key.Explode, key.MaxNesting), func() (any, error) {
		if doc, ok := d.cache.Get(key); ok {
			return doc, nil
		}
		doc, err := d.doc.Exchange(opts)
		if err != nil {
			return nil, err
		}
		d.cache.Put(key, doc)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dxf.Document), nil
}

// Render returns the DXF text for opts.
func (d *Drawing) Render(opts ConvertOptions) (string, error) {
	if d.doc == nil {
		return "", errors.NewUnsupported("render", "drawing has no source")
	}
	doc, err := d.Exchange(opts)
	if err != nil {
		return "", err
	}
	return dxf.String(doc), nil
}

// SaveAs writes the DXF text for opts to path. A .xz suffix compresses
// the output.
func (d *Drawing) SaveAs(path string, opts ConvertOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if d.doc == nil {
		return errors.NewUnsupported("save", "drawing has no source")
	}
	doc, err := d.Exchange(opts)
	if err != nil {
		return err
	}
	return writeExchange(doc, path)
}

// Modelspace returns the top-level exchange entities for opts.
func (d *Drawing) Modelspace(opts ConvertOptions) (*Modelspace, error) {
	doc, err := d.Exchange(opts)
	if err != nil {
		return nil, err
	}
	return &Modelspace{Entities: doc.Entities}, nil
}

// Release drops the cached builds of this drawing.
func (d *Drawing) Release() {
	if d.identity != "" {
		d.cache.Forget(d.identity)
	}
}

// Modelspace is the list of top-level exchange entities.
type Modelspace struct {
	Entities []dxf.Entity
}

// Len returns the number of entities.
func (m *Modelspace) Len() int {
	return len(m.Entities)
}

// Filter returns the entities for which match is true, in order.
func (m *Modelspace) Filter(match func(dxf.Entity) bool) []dxf.Entity {
	out := []dxf.Entity{}
	for _, e := range m.Entities {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}
