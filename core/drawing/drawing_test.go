package drawing

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/jwwconv/core/dxf"
	jwwerrors "github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/core/jww"
	"github.com/FocuswithJustin/jwwconv/core/jww/jwwtest"
	"github.com/FocuswithJustin/jwwconv/internal/archive"
)

func base(layer uint16) jww.EntityBase {
	return jww.EntityBase{PenStyle: 0, PenColor: 2, Layer: layer}
}

func door(n uint32, x float64) *jww.BlockRef {
	return &jww.BlockRef{EntityBase: base(1), RefX: x, ScaleX: 1, ScaleY: 1, DefNumber: n}
}

// sampleSource is a drawing with a door block that nests a knob block.
// Extra top-level entities are appended after the fixed ones.
func sampleSource(memo string, extra ...jww.Entity) []byte {
	b := jwwtest.New(600)
	b.Header.Memo = memo
	b.SetLayer(0, 1, 2, 0, "Walls")
	b.Entities.Add(
		&jww.Line{EntityBase: base(1), EndX: 100},
		&jww.Arc{EntityBase: base(1), CenterX: 50, CenterY: 50, Radius: 10, ArcAngle: 6.283185307179586, Flatness: 1, FullCircle: true},
		&jww.Text{EntityBase: base(0), StartX: 5, StartY: 5, SizeX: 3, SizeY: 3, Content: "plan"},
		door(1, 20),
	)
	b.Entities.Add(extra...)
	b.Block(1, "Door").Add(
		&jww.Line{EntityBase: base(1), EndY: 10},
		door(2, 0),
	)
	b.Referenced()
	b.Block(2, "Knob").Add(
		&jww.Arc{EntityBase: base(1), CenterX: 1, CenterY: 5, Radius: 0.5, ArcAngle: 6.283185307179586, Flatness: 1, FullCircle: true},
	)
	b.Referenced()
	return b.Bytes()
}

func insertCount(doc *dxf.Document) int {
	return doc.Count("INSERT")
}

func TestProbeAgreesWithParse(t *testing.T) {
	src := sampleSource("probe")
	if !Probe(src) {
		t.Fatal("Probe() = false for a valid drawing")
	}
	if _, err := Parse(src); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	for _, junk := range [][]byte{nil, []byte("JwwData"), []byte("not a drawing at all, just text")} {
		if Probe(junk) {
			t.Errorf("Probe(%q) = true", junk)
		}
		if _, err := Parse(junk); !errors.Is(err, jwwerrors.ErrNotThisFormat) {
			t.Errorf("Parse(%q) error = %v, want NotThisFormat", junk, err)
		}
	}
}

func TestParseDocument(t *testing.T) {
	doc, err := Parse(sampleSource("parse"))
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.Validation.Check(); err != nil {
		t.Error(err)
	}
	if doc.Validation.TotalReferences != 2 || doc.Validation.ResolvedReferences != 2 {
		t.Errorf("Validation = %+v", doc.Validation)
	}
	want := map[string]int{"LINE": 1, "CIRCLE": 1, "TEXT": 1, "BLOCK": 1}
	if diff := cmp.Diff(want, doc.EntityCounts); diff != "" {
		t.Errorf("EntityCounts mismatch (-want +got):\n%s", diff)
	}
	if doc.EntityTotal() != 4 || len(doc.Summaries) != 2 {
		t.Errorf("entities = %d, summaries = %v", doc.EntityTotal(), doc.Summaries)
	}
	if doc.Summaries[0].Name != "Door" || !doc.Summaries[0].IsReferenced || doc.Summaries[0].EntityCount != 2 {
		t.Errorf("Summaries[0] = %+v", doc.Summaries[0])
	}

	h, err := ParseHeader(sampleSource("parse"))
	if err != nil {
		t.Fatal(err)
	}
	if h.Memo != "parse" || h.Version != 600 {
		t.Errorf("header = %d %q", h.Version, h.Memo)
	}
}

func TestParseMissingBlock(t *testing.T) {
	doc, err := Parse(sampleSource("missing", door(99, 0), door(99, 5)))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{99, 99}, doc.Validation.UnresolvedDefNumbers); diff != "" {
		t.Errorf("UnresolvedDefNumbers mismatch (-want +got):\n%s", diff)
	}
	if !doc.Validation.HasUnresolved() {
		t.Error("HasUnresolved() = false")
	}
	if err := doc.Validation.Check(); err != nil {
		t.Error(err)
	}
}

func TestConvertRejectsNestingBeforeIO(t *testing.T) {
	bad := ConvertOptions{MaxBlockNesting: 0}
	if _, err := Convert(nil, bad); !errors.Is(err, jwwerrors.ErrInvalidOption) {
		t.Errorf("Convert() error = %v, want InvalidOption", err)
	}
	if _, err := Render(nil, bad); !errors.Is(err, jwwerrors.ErrInvalidOption) {
		t.Errorf("Render() error = %v, want InvalidOption", err)
	}

	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.jww")
	dst := filepath.Join(dir, "out.dxf")
	if _, err := ConvertFile(missing, bad); !errors.Is(err, jwwerrors.ErrInvalidOption) {
		t.Errorf("ConvertFile() error = %v, want InvalidOption", err)
	}
	if err := ConvertFileAndWrite(missing, dst, bad); !errors.Is(err, jwwerrors.ErrInvalidOption) {
		t.Errorf("ConvertFileAndWrite() error = %v, want InvalidOption", err)
	}
	if err := ConvertAndWrite(sampleSource("x"), dst, bad); !errors.Is(err, jwwerrors.ErrInvalidOption) {
		t.Errorf("ConvertAndWrite() error = %v, want InvalidOption", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("nothing should be written for invalid options")
	}
}

func TestRenderFraming(t *testing.T) {
	for _, explode := range []bool{false, true} {
		out, err := Render(sampleSource("render"), ConvertOptions{ExplodeInserts: explode, MaxBlockNesting: 32})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(out, "  0\nSECTION\n") {
			t.Errorf("explode=%v: output does not start with a section", explode)
		}
		if !strings.HasSuffix(out, "  0\nEOF\n") {
			t.Errorf("explode=%v: output does not end with EOF", explode)
		}
	}
}

func TestConvertExplodeAgreement(t *testing.T) {
	src := sampleSource("agree")
	plain, err := Convert(src, ConvertOptions{MaxBlockNesting: 32})
	if err != nil {
		t.Fatal(err)
	}
	exploded, err := Convert(src, ConvertOptions{ExplodeInserts: true, MaxBlockNesting: 32})
	if err != nil {
		t.Fatal(err)
	}

	if insertCount(exploded) != 0 {
		t.Errorf("exploded document keeps %d inserts", insertCount(exploded))
	}
	if len(exploded.Blocks) != 0 {
		t.Errorf("exploded document keeps blocks %v", exploded.Blocks)
	}
	if len(plain.Blocks) != 2 {
		t.Errorf("plain document blocks = %d, want 2", len(plain.Blocks))
	}

	// every non-insert of the plain build appears, in order, in the
	// exploded build
	i := 0
	for _, e := range exploded.Entities {
		for i < len(plain.Entities) && plain.Entities[i].Type() == "INSERT" {
			i++
		}
		if i < len(plain.Entities) && cmp.Equal(e, plain.Entities[i]) {
			i++
		}
	}
	for i < len(plain.Entities) && plain.Entities[i].Type() == "INSERT" {
		i++
	}
	if i != len(plain.Entities) {
		t.Errorf("plain entity %d not found in exploded output", i)
	}
	// door line and knob circle replace the single insert
	if got, want := len(exploded.Entities), len(plain.Entities)-1+2; got != want {
		t.Errorf("exploded entities = %d, want %d", got, want)
	}
}

func TestConvertDepthOneKeepsStub(t *testing.T) {
	doc, err := Convert(sampleSource("depth"), ConvertOptions{ExplodeInserts: true, MaxBlockNesting: 1})
	if err != nil {
		t.Fatal(err)
	}
	if insertCount(doc) != 1 {
		t.Fatalf("inserts = %d, want the knob stub", insertCount(doc))
	}
	if len(doc.Blocks) != 1 || doc.Blocks[0].Name != "Knob" {
		t.Errorf("Blocks = %v, want the knob definition", doc.Blocks)
	}
	if diff := cmp.Diff([]uint32{2}, doc.DepthLimited); diff != "" {
		t.Errorf("DepthLimited mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertSelfReferenceTerminates(t *testing.T) {
	b := jwwtest.New(600)
	b.Entities.Add(door(7, 0))
	b.Block(7, "Loop").Add(&jww.Line{EndX: 1}, door(7, 1))
	doc, err := Convert(b.Bytes(), ConvertOptions{ExplodeInserts: true, MaxBlockNesting: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Count("LINE"); got != 5 {
		t.Errorf("lines = %d, want one per level", got)
	}
	if insertCount(doc) != 1 {
		t.Errorf("inserts = %d, want a single stub", insertCount(doc))
	}
}

func TestConvertIdempotent(t *testing.T) {
	src := sampleSource("idem")
	for _, opts := range []ConvertOptions{
		{MaxBlockNesting: 32},
		{ExplodeInserts: true, MaxBlockNesting: 1},
		{ExplodeInserts: true, MaxBlockNesting: 32},
	} {
		a, err := Convert(src, opts)
		if err != nil {
			t.Fatal(err)
		}
		b, err := Convert(src, opts)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("%+v: builds differ (-first +second):\n%s", opts, diff)
		}
	}
}

func TestFileOperations(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plan.jww")
	if err := os.WriteFile(src, sampleSource("file"), 0644); err != nil {
		t.Fatal(err)
	}

	ok, err := ProbeFile(src)
	if err != nil || !ok {
		t.Errorf("ProbeFile() = %v, %v", ok, err)
	}
	if _, err := ParseFile(src); err != nil {
		t.Errorf("ParseFile() error = %v", err)
	}
	if _, err := ParseHeaderFile(src); err != nil {
		t.Errorf("ParseHeaderFile() error = %v", err)
	}
	text, err := RenderFile(src, DefaultConvertOptions())
	if err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "out", "plan.dxf")
	if err := ConvertFileAndWrite(src, dst, DefaultConvertOptions()); err != nil {
		t.Fatal(err)
	}
	written, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(written) != text {
		t.Error("written file differs from rendered text")
	}

	packed := filepath.Join(dir, "plan.dxf.xz")
	if err := ConvertFileAndWrite(src, packed, DefaultConvertOptions()); err != nil {
		t.Fatal(err)
	}
	unpacked, err := archive.ReadFile(packed)
	if err != nil {
		t.Fatal(err)
	}
	if string(unpacked) != text {
		t.Error("compressed output differs from rendered text")
	}
}

func TestFileErrorsAreIO(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.jww")
	_, err := ParseFile(missing)
	if jwwerrors.KindOf(err) != jwwerrors.KindIO {
		t.Errorf("ParseFile() kind = %v, want IoError", jwwerrors.KindOf(err))
	}
	if _, err := ProbeFile(missing); !errors.Is(err, jwwerrors.ErrIO) {
		t.Errorf("ProbeFile() error = %v", err)
	}
	if _, err := Open(missing); !errors.Is(err, jwwerrors.ErrIO) {
		t.Errorf("Open() error = %v", err)
	}
}

func TestDrawingExchangeCached(t *testing.T) {
	d, err := FromBytes("cached.jww", sampleSource("cached"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()

	opts := DefaultConvertOptions()
	first, err := d.Exchange(opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.Exchange(opts)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("repeated Exchange should return the cached build")
	}

	exploded, err := d.Exchange(ConvertOptions{ExplodeInserts: true, MaxBlockNesting: 32})
	if err != nil {
		t.Fatal(err)
	}
	if exploded == first {
		t.Error("options must select a separate build")
	}

	d.Release()
	third, err := d.Exchange(opts)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("Release should drop cached builds")
	}
	if diff := cmp.Diff(first, third); diff != "" {
		t.Errorf("rebuild differs (-cached +rebuilt):\n%s", diff)
	}
}

func TestDrawingConcurrentExchange(t *testing.T) {
	d, err := FromBytes("concurrent.jww", sampleSource("concurrent"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()

	opts := ConvertOptions{ExplodeInserts: true, MaxBlockNesting: 8}
	results := make([]*dxf.Document, 16)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := d.Exchange(opts)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = doc
		}()
	}
	wg.Wait()
	for i, doc := range results {
		if doc != results[0] {
			t.Errorf("result %d is a separate build", i)
		}
	}
}

func TestDrawingOpenCompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.jww.xz")
	if err := archive.WriteFile(path, sampleSource("packed")); err != nil {
		t.Fatal(err)
	}
	d, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()
	if d.SourcePath() != path || !d.HasSource() {
		t.Errorf("SourcePath() = %q", d.SourcePath())
	}
	if d.Header().Memo != "packed" {
		t.Errorf("Memo = %q", d.Header().Memo)
	}
	if len(d.Identity()) != 64 {
		t.Errorf("Identity() = %q", d.Identity())
	}

	out := filepath.Join(dir, "plan.dxf")
	if err := d.SaveAs(out, DefaultConvertOptions()); err != nil {
		t.Fatal(err)
	}
	text, err := d.Render(DefaultConvertOptions())
	if err != nil {
		t.Fatal(err)
	}
	written, _ := os.ReadFile(out)
	if string(written) != text {
		t.Error("SaveAs output differs from Render")
	}
	if err := d.SaveAs(out, ConvertOptions{}); !errors.Is(err, jwwerrors.ErrInvalidOption) {
		t.Errorf("SaveAs() with nesting 0 error = %v", err)
	}
}

func TestDrawingModelspace(t *testing.T) {
	d, err := FromBytes("ms.jww", sampleSource("ms"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Release()
	ms, err := d.Modelspace(DefaultConvertOptions())
	if err != nil {
		t.Fatal(err)
	}
	if ms.Len() != 4 {
		t.Errorf("Len() = %d, want 4", ms.Len())
	}
	walls := ms.Filter(func(e dxf.Entity) bool { return e.Properties().Layer == "Walls" })
	if len(walls) != 3 {
		t.Errorf("entities on Walls = %d, want 3", len(walls))
	}
}

func TestNewDrawing(t *testing.T) {
	d := New()
	if d.HasSource() || d.Header() != nil || d.Document() != nil {
		t.Error("new drawing should have no source")
	}
	doc, err := d.Exchange(DefaultConvertOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Layers) != 0 || len(doc.Entities) != 0 || len(doc.Blocks) != 0 || len(doc.Unsupported) != 0 {
		t.Errorf("new drawing exchange = %+v", doc)
	}
	if _, err := d.Render(DefaultConvertOptions()); !errors.Is(err, jwwerrors.ErrUnsupported) {
		t.Errorf("Render() error = %v, want Unsupported", err)
	}
	if err := d.SaveAs(filepath.Join(t.TempDir(), "x.dxf"), DefaultConvertOptions()); !errors.Is(err, jwwerrors.ErrUnsupported) {
		t.Errorf("SaveAs() error = %v, want Unsupported", err)
	}
	d.Release()
}
