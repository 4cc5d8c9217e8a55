package dxf

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/jwwconv/core/encoding"
)

const (
	modelSpace = "*Model_Space"
	paperSpace = "*Paper_Space"
)

type lineTypeDef struct {
	description string
	pattern     []float64
}

var lineTypeDefs = map[string]lineTypeDef{
	LineTypeContinuous: {description: "Solid line"},
	LineTypeDashed:     {description: "Dashed line", pattern: []float64{0.6, -0.3}},
	LineTypeDashed2:    {description: "Dashed line x2", pattern: []float64{1.2, -0.6}},
	LineTypeDashDot:    {description: "Dash dot", pattern: []float64{0.6, -0.2, 0.1, -0.2}},
	LineTypeDot:        {description: "Dotted line", pattern: []float64{0.1, -0.1}},
}

// Pattern returns the dash pattern of a line type: positive values are
// dashes, negative values gaps. Continuous and unknown types return nil.
func Pattern(lineType string) []float64 {
	return lineTypeDefs[lineType].pattern
}

// Write serializes doc to w as DXF R2000 ASCII.
func Write(w io.Writer, doc *Document) error {
	if _, err := w.Write(Marshal(doc)); err != nil {
		return fmt.Errorf("failed to write dxf: %w", err)
	}
	return nil
}

// Marshal returns the DXF text of doc. The output depends only on doc.
func Marshal(doc *Document) []byte {
	if doc == nil {
		doc = &Document{}
	}
	wr := &writer{next: 1, records: make(map[string]string)}
	wr.buf.Grow(16 * 1024)
	wr.document(doc)
	return wr.buf.Bytes()
}

// String is Marshal as a string.
func String(doc *Document) string {
	return string(Marshal(doc))
}

type writer struct {
	buf     bytes.Buffer
	next    uint32
	order   []string
	records map[string]string
}

func (w *writer) document(doc *Document) {
	w.register(modelSpace)
	w.register(paperSpace)
	for _, b := range doc.Blocks {
		w.register(b.Name)
	}

	w.header()
	w.sectionStart("TABLES")
	w.lineTypes(doc)
	w.layers(doc)
	w.styles()
	w.blockRecords()
	w.sectionEnd()
	w.blocks(doc)

	w.sectionStart("ENTITIES")
	owner := w.records[modelSpace]
	for _, e := range doc.Entities {
		w.entity(e, owner)
	}
	w.sectionEnd()

	w.sectionStart("OBJECTS")
	w.str(0, "DICTIONARY")
	w.handle()
	w.str(330, "0")
	w.str(100, "AcDbDictionary")
	w.integer(281, 1)
	w.sectionEnd()
	w.str(0, "EOF")
}

func (w *writer) header() {
	w.sectionStart("HEADER")
	w.str(9, "$ACADVER")
	w.str(1, "AC1015")
	w.str(9, "$DWGCODEPAGE")
	w.str(3, "ANSI_1252")
	w.str(9, "$MEASUREMENT")
	w.integer(70, 1)
	w.str(9, "$TEXTSTYLE")
	w.str(7, DefaultStyle)
	w.str(9, "$CLAYER")
	w.str(8, DefaultLayer)
	w.str(9, "$CELTYPE")
	w.str(6, LineTypeByLayer)
	w.str(9, "$CECOLOR")
	w.integer(62, ColorByLayer)
	w.sectionEnd()
}

func (w *writer) lineTypes(doc *Document) {
	set := map[string]bool{
		LineTypeByLayer:    true,
		LineTypeByBlock:    true,
		LineTypeContinuous: true,
	}
	for _, l := range doc.Layers {
		set[l.LineType] = true
	}
	for _, e := range doc.Entities {
		set[e.Properties().LineType] = true
	}
	for _, b := range doc.Blocks {
		for _, e := range b.Entities {
			set[e.Properties().LineType] = true
		}
	}
	names := sortedKeys(set)

	w.str(0, "TABLE")
	w.str(2, "LTYPE")
	w.handle()
	w.integer(70, len(names))
	for _, name := range names {
		def := lineTypeDefs[name]
		length := 0.0
		for _, v := range def.pattern {
			length += math.Abs(v)
		}
		w.str(0, "LTYPE")
		w.handle()
		w.str(2, name)
		w.integer(70, 0)
		w.str(3, def.description)
		w.integer(72, 65)
		w.integer(73, len(def.pattern))
		w.float(40, length)
		for _, v := range def.pattern {
			w.float(49, v)
		}
	}
	w.str(0, "ENDTAB")
}

func (w *writer) layers(doc *Document) {
	byName := make(map[string]Layer, len(doc.Layers))
	for _, l := range doc.Layers {
		if l.Name == DefaultLayer {
			continue
		}
		if _, ok := byName[l.Name]; !ok {
			byName[l.Name] = l
		}
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	w.str(0, "TABLE")
	w.str(2, "LAYER")
	w.handle()
	w.integer(70, len(names)+1)

	w.str(0, "LAYER")
	w.handle()
	w.str(2, DefaultLayer)
	w.integer(70, 0)
	w.integer(62, 7)
	w.str(6, LineTypeContinuous)

	for _, name := range names {
		l := byName[name]
		flags := 0
		if l.Frozen {
			flags |= 1
		}
		if l.Locked {
			flags |= 4
		}
		w.str(0, "LAYER")
		w.handle()
		w.str(2, encoding.EscapeDXF(l.Name))
		w.integer(70, flags)
		w.integer(62, l.Color)
		w.str(6, l.LineType)
	}
	w.str(0, "ENDTAB")
}

func (w *writer) styles() {
	w.str(0, "TABLE")
	w.str(2, "STYLE")
	w.handle()
	w.integer(70, 1)
	w.str(0, "STYLE")
	w.handle()
	w.str(2, DefaultStyle)
	w.integer(70, 0)
	w.float(40, 0)
	w.float(41, 1)
	w.float(50, 0)
	w.integer(71, 0)
	w.float(42, defaultTextHeight)
	w.str(3, "txt")
	w.str(4, "")
	w.str(0, "ENDTAB")
}

func (w *writer) blockRecords() {
	w.str(0, "TABLE")
	w.str(2, "BLOCK_RECORD")
	w.handle()
	w.integer(70, len(w.order))
	for _, name := range w.order {
		w.str(0, "BLOCK_RECORD")
		w.str(5, w.records[name])
		w.str(330, "0")
		w.str(100, "AcDbSymbolTableRecord")
		w.str(100, "AcDbBlockTableRecord")
		w.str(2, encoding.EscapeDXF(name))
	}
	w.str(0, "ENDTAB")
}

func (w *writer) blocks(doc *Document) {
	w.sectionStart("BLOCKS")
	w.block(modelSpace, 0, 0, nil)
	w.block(paperSpace, 0, 0, nil)
	// One BLOCK per record; a repeated name keeps its first definition.
	written := map[string]bool{modelSpace: true, paperSpace: true}
	for _, b := range doc.Blocks {
		if written[b.Name] {
			continue
		}
		written[b.Name] = true
		w.block(b.Name, b.BaseX, b.BaseY, b.Entities)
	}
	w.sectionEnd()
}

func (w *writer) block(name string, x, y float64, entities []Entity) {
	owner := w.records[name]
	escaped := encoding.EscapeDXF(name)
	w.str(0, "BLOCK")
	w.handle()
	w.str(330, owner)
	w.str(100, "AcDbEntity")
	w.str(8, DefaultLayer)
	w.str(100, "AcDbBlockBegin")
	w.str(2, escaped)
	w.integer(70, 0)
	w.point(10, x, y)
	w.str(3, escaped)
	w.str(1, "")
	for _, e := range entities {
		w.entity(e, owner)
	}
	w.str(0, "ENDBLK")
	w.handle()
	w.str(330, owner)
	w.str(100, "AcDbEntity")
	w.str(8, DefaultLayer)
	w.str(100, "AcDbBlockEnd")
}

func (w *writer) entity(e Entity, owner string) {
	p := e.Properties()
	w.str(0, e.Type())
	w.handle()
	w.str(330, owner)
	w.str(8, encoding.EscapeDXF(p.Layer))
	w.integer(62, p.Color)
	w.str(6, p.LineType)

	switch v := e.(type) {
	case *Line:
		w.point(10, v.X1, v.Y1)
		w.point(11, v.X2, v.Y2)
	case *Circle:
		w.point(10, v.CenterX, v.CenterY)
		w.float(40, v.Radius)
	case *Arc:
		w.point(10, v.CenterX, v.CenterY)
		w.float(40, v.Radius)
		w.float(50, v.StartAngle)
		w.float(51, v.EndAngle)
	case *Ellipse:
		w.point(10, v.CenterX, v.CenterY)
		w.point(11, v.MajorAxisX, v.MajorAxisY)
		w.float(40, v.MinorRatio)
		w.float(41, v.StartParam)
		w.float(42, v.EndParam)
	case *Point:
		w.point(10, v.X, v.Y)
	case *Text:
		w.point(10, v.X, v.Y)
		w.float(40, v.Height)
		w.str(1, encoding.EscapeDXF(v.Content))
		w.float(50, v.Rotation)
		w.str(7, encoding.EscapeDXF(v.Style))
	case *Solid:
		w.point(10, v.X1, v.Y1)
		w.point(11, v.X2, v.Y2)
		w.point(12, v.X3, v.Y3)
		w.point(13, v.X4, v.Y4)
	case *Insert:
		w.str(2, encoding.EscapeDXF(v.BlockName))
		w.point(10, v.X, v.Y)
		w.float(41, v.ScaleX)
		w.float(42, v.ScaleY)
		w.float(43, 1)
		w.float(50, v.Rotation)
	}
}

// register assigns a BLOCK_RECORD handle to name once.
func (w *writer) register(name string) {
	if _, ok := w.records[name]; ok {
		return
	}
	w.records[name] = w.alloc()
	w.order = append(w.order, name)
}

func (w *writer) alloc() string {
	h := strings.ToUpper(strconv.FormatUint(uint64(w.next), 16))
	w.next++
	return h
}

func (w *writer) handle() {
	w.str(5, w.alloc())
}

func (w *writer) sectionStart(name string) {
	w.str(0, "SECTION")
	w.str(2, name)
}

func (w *writer) sectionEnd() {
	w.str(0, "ENDSEC")
}

// point writes x, y and a zero z under code, code+10 and code+20.
func (w *writer) point(code int, x, y float64) {
	w.float(code, x)
	w.float(code+10, y)
	w.float(code+20, 0)
}

func (w *writer) str(code int, value string) {
	fmt.Fprintf(&w.buf, "%3d\n", code)
	w.buf.WriteString(value)
	w.buf.WriteByte('\n')
}

func (w *writer) integer(code, value int) {
	w.str(code, strconv.Itoa(value))
}

func (w *writer) float(code int, value float64) {
	w.str(code, strconv.FormatFloat(value, 'f', 12, 64))
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
