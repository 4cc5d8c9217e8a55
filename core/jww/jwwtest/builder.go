// Package jwwtest synthesizes Jw_cad byte streams for tests.
package jwwtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/japanese"

	"github.com/FocuswithJustin/jwwconv/core/jww"
)

// Builder assembles a drawing. The zero value is not usable; call New.
type Builder struct {
	Header jww.Header
	// OmitNames leaves out the layer name block, so the decoder falls
	// back to default names.
	OmitNames bool
	// Entities is the top-level entity list.
	Entities *List

	blocks []*block
	// rawBlocks replaces the encoded block section when non-nil.
	rawBlocks []byte
}

type block struct {
	number     uint32
	name       string
	referenced bool
	list       *List
}

type item struct {
	entity jww.Entity
	null   bool
	class  string
	raw    []byte
	ref    uint16
}

// List is an entity list under construction.
type List struct {
	items []item
}

// Add appends decodable entities.
func (l *List) Add(entities ...jww.Entity) *List {
	for _, e := range entities {
		l.items = append(l.items, item{entity: e})
	}
	return l
}

// AddNull appends an MFC null object.
func (l *List) AddNull() *List {
	l.items = append(l.items, item{null: true})
	return l
}

// AddForeign appends an object of a class the decoder does not know.
func (l *List) AddForeign(class string, payload []byte) *List {
	l.items = append(l.items, item{class: class, raw: payload})
	return l
}

// AddClassRef appends a bare reference to class id pid.
func (l *List) AddClassRef(pid uint16) *List {
	l.items = append(l.items, item{ref: pid})
	return l
}

// New returns a builder for the given header version with unit scales
// and empty names.
func New(version uint32) *Builder {
	b := &Builder{Entities: &List{}}
	b.Header.Version = version
	for g := range b.Header.LayerGroups {
		b.Header.LayerGroups[g].Scale = 1
	}
	return b
}

// SetLayer sets the state, protection and name of one layer.
func (b *Builder) SetLayer(group, layer int, state, protect uint32, name string) *Builder {
	l := &b.Header.LayerGroups[group].Layers[layer]
	l.State, l.Protect, l.Name = state, protect, name
	return b
}

// Block adds a block definition and returns its entity list.
func (b *Builder) Block(number uint32, name string) *List {
	blk := &block{number: number, name: name, list: &List{}}
	b.blocks = append(b.blocks, blk)
	return blk.list
}

// RawBlocks replaces the block section with data.
func (b *Builder) RawBlocks(data []byte) *Builder {
	b.rawBlocks = data
	return b
}

// Bytes encodes the drawing.
func (b *Builder) Bytes() []byte {
	w := &writer{version: b.Header.Version}
	w.buf.WriteString(jww.Signature)
	w.u32(b.Header.Version)
	w.cstring(b.Header.Memo)
	w.u32(b.Header.PaperSize)
	w.u32(b.Header.WriteLayerGroup)
	for _, g := range b.Header.LayerGroups {
		w.u32(g.State)
		w.u32(g.WriteLayer)
		w.f64(g.Scale)
		w.u32(g.Protect)
		for _, l := range g.Layers {
			w.u32(l.State)
			w.u32(l.Protect)
		}
	}
	if b.Header.Version >= 300 && !b.OmitNames {
		w.buf.Write(make([]byte, (14+5+1+1)*4+16+8+4+4+8+16+16))
		for _, g := range b.Header.LayerGroups {
			for _, l := range g.Layers {
				w.cstring(l.Name)
			}
		}
		for _, g := range b.Header.LayerGroups {
			w.cstring(g.Name)
		}
	}

	w.list(b.Entities)

	if b.rawBlocks != nil {
		w.buf.Write(b.rawBlocks)
		return w.buf.Bytes()
	}
	w.u32(uint32(len(b.blocks)))
	classes := map[string]uint16{}
	next := uint16(1)
	for _, blk := range b.blocks {
		next = w.classTag(classes, next, jww.ClassBlockDef)
		w.base(jww.EntityBase{})
		w.u32(blk.number)
		w.u32(boolU32(blk.referenced))
		w.u32(0)
		w.cstring(blk.name)
		next++
		w.list(blk.list)
	}
	return w.buf.Bytes()
}

type writer struct {
	buf     bytes.Buffer
	version uint32
}

func (w *writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u16(v uint16) { w.buf.Write(binary.LittleEndian.AppendUint16(nil, v)) }
func (w *writer) u32(v uint32) { w.buf.Write(binary.LittleEndian.AppendUint32(nil, v)) }

func (w *writer) f64(vs ...float64) {
	for _, v := range vs {
		w.buf.Write(binary.LittleEndian.AppendUint64(nil, math.Float64bits(v)))
	}
}

func (w *writer) cstring(s string) {
	raw, err := japanese.ShiftJIS.NewEncoder().String(s)
	if err != nil {
		raw = s
	}
	switch n := len(raw); {
	case n < 0xFF:
		w.u8(uint8(n))
	case n < 0xFFFF:
		w.u8(0xFF)
		w.u16(uint16(n))
	default:
		w.u8(0xFF)
		w.u16(0xFFFF)
		w.u32(uint32(n))
	}
	w.buf.WriteString(raw)
}

// classTag writes a new-class declaration the first time a class is seen
// and a class reference afterwards.
func (w *writer) classTag(classes map[string]uint16, next uint16, class string) uint16 {
	if pid, ok := classes[class]; ok {
		w.u16(0x8000 | pid)
		return next
	}
	w.u16(0xFFFF)
	w.u16(uint16(w.version))
	w.u16(uint16(len(class)))
	w.buf.WriteString(class)
	classes[class] = next
	return next + 1
}

func (w *writer) list(l *List) {
	w.u16(uint16(len(l.items)))
	classes := map[string]uint16{}
	next := uint16(1)
	for _, it := range l.items {
		switch {
		case it.null:
			w.u16(0x8000)
			continue
		case it.ref != 0:
			w.u16(0x8000 | it.ref)
		case it.class != "":
			next = w.classTag(classes, next, it.class)
			w.buf.Write(it.raw)
		default:
			next = w.classTag(classes, next, className(it.entity))
			w.entity(it.entity)
		}
		next++
	}
}

func className(e jww.Entity) string {
	switch e.(type) {
	case *jww.Line:
		return jww.ClassLine
	case *jww.Arc:
		return jww.ClassArc
	case *jww.Point:
		return jww.ClassPoint
	case *jww.Text:
		return jww.ClassText
	case *jww.Solid:
		return jww.ClassSolid
	case *jww.BlockRef:
		return jww.ClassBlockRef
	case *jww.Dimension:
		return jww.ClassDimension
	}
	panic(fmt.Sprintf("jwwtest: cannot encode %T", e))
}

func (w *writer) base(b jww.EntityBase) {
	w.u32(b.Group)
	w.u8(b.PenStyle)
	w.u16(b.PenColor)
	if w.version >= 351 {
		w.u16(b.PenWidth)
	}
	w.u16(b.Layer)
	w.u16(b.LayerGroup)
	w.u16(b.Flag)
}

func (w *writer) entity(e jww.Entity) {
	w.base(e.Base())
	switch v := e.(type) {
	case *jww.Line:
		w.f64(v.StartX, v.StartY, v.EndX, v.EndY)
	case *jww.Arc:
		w.f64(v.CenterX, v.CenterY, v.Radius, v.StartAngle, v.ArcAngle, v.TiltAngle, v.Flatness)
		w.u32(boolU32(v.FullCircle))
	case *jww.Point:
		w.point(v)
	case *jww.Text:
		w.text(v)
	case *jww.Solid:
		w.f64(v.X1, v.Y1, v.X4, v.Y4, v.X2, v.Y2, v.X3, v.Y3)
		if v.PenColor == 10 {
			w.u32(v.Color)
		}
	case *jww.BlockRef:
		w.f64(v.RefX, v.RefY, v.ScaleX, v.ScaleY, v.Rotation)
		w.u32(v.DefNumber)
	case *jww.Dimension:
		w.base(v.Line.EntityBase)
		w.f64(v.Line.StartX, v.Line.StartY, v.Line.EndX, v.Line.EndY)
		w.base(v.Text.EntityBase)
		w.text(&v.Text)
		if w.version >= 420 {
			w.u16(v.SxfMode)
			for i := range 2 {
				var l jww.Line
				if i < len(v.AuxLines) {
					l = v.AuxLines[i]
				}
				w.base(l.EntityBase)
				w.f64(l.StartX, l.StartY, l.EndX, l.EndY)
			}
			for i := range 4 {
				var p jww.Point
				if i < len(v.AuxPoints) {
					p = v.AuxPoints[i]
				}
				w.base(p.EntityBase)
				w.point(&p)
			}
		}
	}
}

func (w *writer) point(p *jww.Point) {
	w.f64(p.X, p.Y)
	w.u32(boolU32(p.Temporary))
	if p.PenStyle == 100 {
		w.u32(p.Code)
		w.f64(p.Angle, p.Scale)
	}
}

func (w *writer) text(t *jww.Text) {
	w.f64(t.StartX, t.StartY, t.EndX, t.EndY)
	w.u32(t.TextType)
	w.f64(t.SizeX, t.SizeY, t.Spacing, t.Angle)
	w.cstring(t.FontName)
	w.cstring(t.Content)
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Referenced marks the most recently added block as referenced.
func (b *Builder) Referenced() *Builder {
	if n := len(b.blocks); n > 0 {
		b.blocks[n-1].referenced = true
	}
	return b
}
