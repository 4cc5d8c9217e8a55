package jww_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	jwwerrors "github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/core/jww"
	"github.com/FocuswithJustin/jwwconv/core/jww/jwwtest"
)

func base(layer uint16) jww.EntityBase {
	return jww.EntityBase{PenStyle: 1, PenColor: 2, PenWidth: 1, Layer: layer}
}

func TestDecodeEntities(t *testing.T) {
	want := []jww.Entity{
		&jww.Line{EntityBase: base(0), StartX: 1, StartY: 2, EndX: 3, EndY: 4},
		&jww.Arc{EntityBase: base(1), CenterX: 5, CenterY: 5, Radius: 2, ArcAngle: 1.5, Flatness: 1},
		&jww.Arc{EntityBase: base(1), Radius: 3, Flatness: 1, FullCircle: true},
		&jww.Point{EntityBase: base(2), X: 7, Y: 8},
		&jww.Point{EntityBase: jww.EntityBase{PenStyle: 100}, X: 1, Y: 1, Code: 3, Angle: 45, Scale: 2},
		&jww.Text{EntityBase: base(3), StartX: 1, EndX: 9, SizeX: 3, SizeY: 3.5, Angle: 30, FontName: "ＭＳ ゴシック", Content: "平面図"},
		&jww.Solid{EntityBase: base(4), X1: 0, Y1: 0, X2: 1, Y2: 0, X3: 1, Y3: 1, X4: 0, Y4: 1},
		&jww.Solid{EntityBase: jww.EntityBase{PenColor: 10}, X2: 2, X3: 2, Y3: 2, Y4: 2, Color: 0x00ff00, HasColor: true},
		&jww.BlockRef{EntityBase: base(5), RefX: 10, RefY: 20, ScaleX: 1, ScaleY: 2, Rotation: 0.5, DefNumber: 7},
		&jww.Dimension{
			EntityBase: base(6),
			Line:       jww.Line{StartX: 0, EndX: 10},
			Text:       jww.Text{SizeY: 2.5, Content: "1000"},
			HasSxf:     true,
			AuxLines:   []jww.Line{{EndX: 1}, {EndY: 1}},
			AuxPoints:  []jww.Point{{X: 1}, {X: 2}, {X: 3}, {X: 4}},
		},
	}

	b := jwwtest.New(600)
	b.Entities.Add(want...)
	d, err := jww.Decode(b.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if diff := cmp.Diff(want, d.Entities); diff != "" {
		t.Errorf("entities mismatch (-want +got):\n%s", diff)
	}
	if len(d.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", d.Warnings)
	}
	if len(d.BlockDefs) != 0 {
		t.Errorf("BlockDefs = %d, want 0", len(d.BlockDefs))
	}
}

func TestDecodeOldVersion(t *testing.T) {
	// before 351 there is no pen width, before 420 no dimension extras
	want := []jww.Entity{
		&jww.Line{EntityBase: jww.EntityBase{PenColor: 3, Layer: 2}, EndX: 1, EndY: 1},
		&jww.Dimension{Line: jww.Line{EndX: 5}, Text: jww.Text{Content: "5"}},
	}
	b := jwwtest.New(300)
	b.Entities.Add(want...)
	d, err := jww.Decode(b.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if diff := cmp.Diff(want, d.Entities); diff != "" {
		t.Errorf("entities mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeBlockDefs(t *testing.T) {
	b := jwwtest.New(600)
	b.Entities.Add(&jww.BlockRef{ScaleX: 1, ScaleY: 1, DefNumber: 1})
	b.Block(1, "BLK").Add(
		&jww.Line{EndX: 1},
		&jww.BlockRef{ScaleX: 1, ScaleY: 1, DefNumber: 2},
	)
	b.Referenced()
	b.Block(2, "  窓  ").Add(&jww.Arc{Radius: 1, Flatness: 1, FullCircle: true})

	d, err := jww.Decode(b.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(d.BlockDefs) != 2 {
		t.Fatalf("BlockDefs = %d, want 2", len(d.BlockDefs))
	}
	first, second := d.BlockDefs[0], d.BlockDefs[1]
	if first.Number != 1 || first.Name != "BLK" || !first.IsReferenced {
		t.Errorf("first def = %+v", first)
	}
	if len(first.Entities) != 2 {
		t.Errorf("first def entities = %d, want 2", len(first.Entities))
	}
	if second.Name != "窓" {
		t.Errorf("second def name = %q, want trimmed", second.Name)
	}
	if second.IsReferenced {
		t.Error("second def should not be referenced")
	}
	if got := jww.CountKinds(second.Entities); got["CIRCLE"] != 1 {
		t.Errorf("CountKinds() = %v", got)
	}
	if second.BaseX != 0 || second.BaseY != 0 {
		t.Error("block base should be the origin")
	}
}

func TestDecodeNullObjects(t *testing.T) {
	b := jwwtest.New(600)
	b.Entities.Add(&jww.Line{EndX: 1}).AddNull().Add(&jww.Line{EndX: 2}, &jww.Point{X: 3})
	d, err := jww.Decode(b.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(d.Entities) != 3 {
		t.Fatalf("entities = %d, want 3", len(d.Entities))
	}
	if l := d.Entities[1].(*jww.Line); l.EndX != 2 {
		t.Errorf("second line EndX = %v", l.EndX)
	}
}

func TestDecodeUnknownClassStopsList(t *testing.T) {
	b := jwwtest.New(600)
	b.Entities.Add(&jww.Line{EndX: 1}).
		AddForeign("CDataKukei", make([]byte, 40)).
		Add(&jww.Line{EndX: 2})
	b.Block(1, "SKIPPED").Add(&jww.Line{})

	d, err := jww.Decode(b.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(d.Entities) != 2 {
		t.Fatalf("entities = %d, want 2", len(d.Entities))
	}
	u, ok := d.Entities[1].(*jww.Unsupported)
	if !ok {
		t.Fatalf("entity 1 = %T, want *Unsupported", d.Entities[1])
	}
	if u.Tag != "CDataKukei" {
		t.Errorf("Tag = %q", u.Tag)
	}
	if len(d.BlockDefs) != 0 {
		t.Error("block section should be skipped after a stopped list")
	}
	if len(d.Warnings) == 0 {
		t.Error("expected warnings")
	}
}

func TestDecodeUndeclaredClass(t *testing.T) {
	b := jwwtest.New(600)
	b.Entities.Add(&jww.Line{}).AddClassRef(9)
	d, err := jww.Decode(b.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	u, ok := d.Entities[len(d.Entities)-1].(*jww.Unsupported)
	if !ok || u.Tag != "PID_9" {
		t.Fatalf("last entity = %#v", d.Entities[len(d.Entities)-1])
	}
}

func TestDecodeNoEntityList(t *testing.T) {
	b := jwwtest.New(600)
	d, err := jww.Decode(b.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(d.Entities) != 0 {
		t.Errorf("entities = %d", len(d.Entities))
	}
	if len(d.Warnings) != 1 || !strings.Contains(d.Warnings[0], "not found") {
		t.Errorf("Warnings = %v", d.Warnings)
	}
}

func TestDecodeTruncatedEntity(t *testing.T) {
	b := jwwtest.New(600)
	b.Entities.Add(&jww.Line{EndX: 1}, &jww.Line{EndX: 2})
	data := b.Bytes()
	// drop the block count and half of the last line
	data = data[:len(data)-4-16]

	_, err := jww.Decode(data)
	if !errors.Is(err, jwwerrors.ErrTruncatedOrCorrupt) {
		t.Fatalf("Decode() error = %v, want TruncatedOrCorrupt", err)
	}
	var fe *jwwerrors.FormatError
	if !errors.As(err, &fe) || fe.Offset <= 0 {
		t.Errorf("expected a FormatError with an offset, got %v", err)
	}
}

func TestDecodeTruncatedBlocks(t *testing.T) {
	b := jwwtest.New(600)
	b.Entities.Add(&jww.BlockRef{DefNumber: 1})
	b.Block(1, "A").Add(&jww.Line{EndX: 1})
	b.Block(2, "B").Add(&jww.Line{EndX: 1}, &jww.Line{EndX: 2})
	data := b.Bytes()
	data = data[:len(data)-10]

	d, err := jww.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(d.BlockDefs) != 2 {
		t.Fatalf("BlockDefs = %d, want 2 (second partial)", len(d.BlockDefs))
	}
	if d.BlockDefs[1].Entities != nil {
		t.Errorf("partial def entities = %v, want none", d.BlockDefs[1].Entities)
	}
	if len(d.Warnings) != 1 {
		t.Errorf("Warnings = %v", d.Warnings)
	}
}

func TestDecodeHugeBlockCount(t *testing.T) {
	b := jwwtest.New(600)
	b.Entities.Add(&jww.Line{})
	b.RawBlocks([]byte{0x11, 0x27, 0, 0}) // 10001

	d, err := jww.Decode(b.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(d.BlockDefs) != 0 {
		t.Errorf("BlockDefs = %d", len(d.BlockDefs))
	}
	if len(d.Warnings) != 1 {
		t.Errorf("Warnings = %v", d.Warnings)
	}
}

func TestDecodeHostileCounts(t *testing.T) {
	b := jwwtest.New(600)
	b.Entities.Add(&jww.Line{})
	// claims 10000 block definitions with nothing behind them
	b.RawBlocks([]byte{0x10, 0x27, 0, 0})

	d, err := jww.Decode(b.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(d.BlockDefs) != 0 || len(d.Warnings) != 1 {
		t.Errorf("BlockDefs = %d Warnings = %v", len(d.BlockDefs), d.Warnings)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, jwwerrors.ErrNotThisFormat},
		{"other format", []byte("AutoCAD Binary DXF\r\n"), jwwerrors.ErrNotThisFormat},
		{"signature only", []byte("JwwData."), jwwerrors.ErrNotThisFormat},
		{"future version", jwwtest.New(1000).Bytes(), jwwerrors.ErrUnsupportedVersion},
		{"ancient version", jwwtest.New(100).Bytes(), jwwerrors.ErrUnsupportedVersion},
		{"cut header", jwwtest.New(600).Bytes()[:200], jwwerrors.ErrTruncatedOrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jww.Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProbeAgreesWithDecode(t *testing.T) {
	valid := jwwtest.New(600).Bytes()
	inputs := [][]byte{
		nil,
		[]byte("JwwData"),
		[]byte("JwwData.\x58\x02"),
		[]byte("JwwData.\x58\x02\x00\x00"),
		[]byte("not a drawing at all"),
		jwwtest.New(1000).Bytes(),
		valid,
	}
	// Every cut inside the fixed header prefix must probe false: signature,
	// version, an empty memo, paper size, write group and the layer table.
	fixed := len(jww.Signature) + 4 + 1 + 4 + 4 +
		jww.GroupCount*(4+4+8+4+jww.LayersPerGroup*8)
	for n := 0; n < fixed; n += 7 {
		inputs = append(inputs, valid[:n])
	}

	for _, in := range inputs {
		probed := jww.Probe(in)
		_, err := jww.Decode(in)
		if probed && err != nil {
			t.Errorf("Probe(%q) = true but Decode error = %v", truncate(in), err)
		}
		if !probed && err == nil {
			t.Errorf("Probe(%q) = false but Decode succeeded", truncate(in))
		}
	}
}

func truncate(b []byte) []byte {
	if len(b) > 16 {
		return b[:16]
	}
	return b
}
