package jww

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// MFC CArchive class tags.
const (
	tagNewClass   = 0xFFFF
	tagNullObject = 0x8000
	tagClassMask  = 0x7FFF
)

const (
	entityScanStart  = 100
	minEntityScanLen = 128
	maxClassNameLen  = 64
	maxBlockDefs     = 10000

	// smallest encodable entity: class reference plus the pre-351 base
	minEntitySize = 2 + 4 + 1 + 2 + 2 + 2 + 2
)

// Class names as written by Jw_cad.
const (
	ClassLine      = "CDataSen"
	ClassArc       = "CDataEnko"
	ClassPoint     = "CDataTen"
	ClassText      = "CDataMoji"
	ClassSolid     = "CDataSolid"
	ClassBlockRef  = "CDataBlock"
	ClassDimension = "CDataSunpou"
	ClassBlockDef  = "CDataList"
)

// Drawing is a decoded source file.
type Drawing struct {
	Header    *Header
	Entities  []Entity
	BlockDefs []*BlockDef
	// Warnings lists recoverable problems, in the order they were found.
	Warnings []string
}

// Decode parses a complete drawing. Failures in the header or the
// top-level entity list are fatal; the trailing block section is decoded
// best-effort and problems there become warnings.
func Decode(data []byte) (*Drawing, error) {
	h, _, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	d := &Drawing{Header: h}

	offset, ok := findEntityList(data, h.Version)
	if !ok {
		d.Warnings = append(d.Warnings, "entity list marker not found; drawing has no entities")
		return d, nil
	}

	r := newReader(data)
	r.pos = offset
	entities, stopped, err := decodeEntityList(r, h.Version)
	if err != nil {
		return nil, err
	}
	d.Entities = entities
	if stopped != nil {
		d.Warnings = append(d.Warnings, fmt.Sprintf("entity list stopped at offset %d: %s", offset, stopped.Reason))
		d.Warnings = append(d.Warnings, "block definitions skipped after unreadable entity")
		return d, nil
	}

	if r.remaining() > 0 {
		defs, warnings := decodeBlockDefs(r, h.Version)
		d.BlockDefs = defs
		d.Warnings = append(d.Warnings, warnings...)
	}
	return d, nil
}

// findEntityList locates the first new-class declaration of a CData
// class and returns the offset of the list count that precedes it.
func findEntityList(data []byte, version uint32) (int, bool) {
	if len(data) < minEntityScanLen {
		return 0, false
	}
	lo, hi := byte(version), byte(version>>8)
	for i := entityScanStart; i+20 < len(data); i++ {
		if data[i] != 0xFF || data[i+1] != 0xFF || data[i+2] != lo || data[i+3] != hi {
			continue
		}
		n := int(binary.LittleEndian.Uint16(data[i+4:]))
		if n < 8 || n > 32 || i+6+n > len(data) {
			continue
		}
		if bytes.HasPrefix(data[i+6:i+6+n], []byte("CData")) {
			return i - 2, true
		}
	}
	return 0, false
}

// classTable maps MFC persistent ids to class names. Every object read
// from the archive consumes one id, as does every class declaration.
type classTable struct {
	names map[uint32]string
	next  uint32
}

func newClassTable() *classTable {
	return &classTable{names: make(map[uint32]string), next: 1}
}

// readClass reads a class tag. It returns the class name, or "" for a
// null object. Malformed class data comes back as an *Unsupported with
// a nil error; only running out of bytes is an error.
func (t *classTable) readClass(r *reader) (string, *Unsupported, error) {
	tag, err := r.u16("class tag")
	if err != nil {
		return "", nil, err
	}
	switch tag {
	case tagNewClass:
		if _, err := r.u16("class schema"); err != nil {
			return "", nil, err
		}
		n, err := r.u16("class name length")
		if err != nil {
			return "", nil, err
		}
		if n == 0 || n > maxClassNameLen {
			return "", &Unsupported{
				Tag:    fmt.Sprintf("CLASS_LEN_%d", n),
				Reason: fmt.Sprintf("class name length %d out of range", n),
			}, nil
		}
		raw, err := r.take(int(n), "class name")
		if err != nil {
			return "", nil, err
		}
		name := string(raw)
		t.names[t.next] = name
		t.next++
		return name, nil, nil
	case tagNullObject:
		return "", nil, nil
	}
	pid := uint32(tag & tagClassMask)
	name, ok := t.names[pid]
	if !ok {
		return "", &Unsupported{
			Tag:    fmt.Sprintf("PID_%d", pid),
			Reason: fmt.Sprintf("reference to undeclared class id %d", pid),
		}, nil
	}
	return name, nil, nil
}

// decodeEntityList reads a u16 count followed by tagged objects. When a
// record cannot be interpreted the list stops: the record is appended as
// *Unsupported and also returned so callers can report it.
func decodeEntityList(r *reader, version uint32) ([]Entity, *Unsupported, error) {
	count, err := r.u16("entity count")
	if err != nil {
		return nil, nil, err
	}
	entities := make([]Entity, 0, min(int(count), r.remaining()/minEntitySize))
	classes := newClassTable()

	for range int(count) {
		start := r.pos
		name, bad, err := classes.readClass(r)
		if err != nil {
			return nil, nil, err
		}
		if bad != nil {
			entities = append(entities, bad)
			return entities, bad, nil
		}
		if name == "" {
			continue
		}
		e, err := decodeEntity(r, name, version)
		if err != nil {
			return nil, nil, err
		}
		if u, ok := e.(*Unsupported); ok {
			u.Reason = fmt.Sprintf("%s at offset %d", u.Reason, start)
			entities = append(entities, u)
			return entities, u, nil
		}
		classes.next++
		entities = append(entities, e)
	}
	return entities, nil, nil
}

func decodeEntity(r *reader, class string, version uint32) (Entity, error) {
	switch class {
	case ClassLine:
		return decodeLine(r, version)
	case ClassArc:
		return decodeArc(r, version)
	case ClassPoint:
		return decodePoint(r, version)
	case ClassText:
		return decodeText(r, version)
	case ClassSolid:
		return decodeSolid(r, version)
	case ClassBlockRef:
		return decodeBlockRef(r, version)
	case ClassDimension:
		return decodeDimension(r, version)
	}
	return &Unsupported{Tag: class, Reason: "unknown entity class " + class}, nil
}

func decodeBase(r *reader, version uint32) (EntityBase, error) {
	var b EntityBase
	var err error
	if b.Group, err = r.u32("group"); err != nil {
		return b, err
	}
	if b.PenStyle, err = r.u8("pen style"); err != nil {
		return b, err
	}
	if b.PenColor, err = r.u16("pen color"); err != nil {
		return b, err
	}
	if version >= 351 {
		if b.PenWidth, err = r.u16("pen width"); err != nil {
			return b, err
		}
	}
	if b.Layer, err = r.u16("layer"); err != nil {
		return b, err
	}
	if b.LayerGroup, err = r.u16("layer group"); err != nil {
		return b, err
	}
	if b.Flag, err = r.u16("flag"); err != nil {
		return b, err
	}
	return b, nil
}

func decodeLine(r *reader, version uint32) (*Line, error) {
	base, err := decodeBase(r, version)
	if err != nil {
		return nil, err
	}
	l := &Line{EntityBase: base}
	if err := r.f64s("line", &l.StartX, &l.StartY, &l.EndX, &l.EndY); err != nil {
		return nil, err
	}
	return l, nil
}

func decodeArc(r *reader, version uint32) (*Arc, error) {
	base, err := decodeBase(r, version)
	if err != nil {
		return nil, err
	}
	a := &Arc{EntityBase: base}
	if err := r.f64s("arc", &a.CenterX, &a.CenterY, &a.Radius,
		&a.StartAngle, &a.ArcAngle, &a.TiltAngle, &a.Flatness); err != nil {
		return nil, err
	}
	full, err := r.u32("arc full circle")
	if err != nil {
		return nil, err
	}
	a.FullCircle = full != 0
	return a, nil
}

func decodePoint(r *reader, version uint32) (*Point, error) {
	base, err := decodeBase(r, version)
	if err != nil {
		return nil, err
	}
	p := &Point{EntityBase: base}
	if err := r.f64s("point", &p.X, &p.Y); err != nil {
		return nil, err
	}
	temp, err := r.u32("point temporary")
	if err != nil {
		return nil, err
	}
	p.Temporary = temp != 0
	// pen style 100 marks a symbol point
	if base.PenStyle == 100 {
		if p.Code, err = r.u32("point code"); err != nil {
			return nil, err
		}
		if err := r.f64s("point symbol", &p.Angle, &p.Scale); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func decodeText(r *reader, version uint32) (*Text, error) {
	base, err := decodeBase(r, version)
	if err != nil {
		return nil, err
	}
	t := &Text{EntityBase: base}
	if err := r.f64s("text", &t.StartX, &t.StartY, &t.EndX, &t.EndY); err != nil {
		return nil, err
	}
	if t.TextType, err = r.u32("text type"); err != nil {
		return nil, err
	}
	if err := r.f64s("text", &t.SizeX, &t.SizeY, &t.Spacing, &t.Angle); err != nil {
		return nil, err
	}
	if t.FontName, err = r.cstring("font name"); err != nil {
		return nil, err
	}
	if t.Content, err = r.cstring("text content"); err != nil {
		return nil, err
	}
	return t, nil
}

func decodeSolid(r *reader, version uint32) (*Solid, error) {
	base, err := decodeBase(r, version)
	if err != nil {
		return nil, err
	}
	s := &Solid{EntityBase: base}
	// stored order is 1, 4, 2, 3
	if err := r.f64s("solid", &s.X1, &s.Y1, &s.X4, &s.Y4, &s.X2, &s.Y2, &s.X3, &s.Y3); err != nil {
		return nil, err
	}
	if base.PenColor == 10 {
		if s.Color, err = r.u32("solid color"); err != nil {
			return nil, err
		}
		s.HasColor = true
	}
	return s, nil
}

func decodeBlockRef(r *reader, version uint32) (*BlockRef, error) {
	base, err := decodeBase(r, version)
	if err != nil {
		return nil, err
	}
	b := &BlockRef{EntityBase: base}
	if err := r.f64s("block reference", &b.RefX, &b.RefY, &b.ScaleX, &b.ScaleY, &b.Rotation); err != nil {
		return nil, err
	}
	if b.DefNumber, err = r.u32("block number"); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeDimension(r *reader, version uint32) (*Dimension, error) {
	base, err := decodeBase(r, version)
	if err != nil {
		return nil, err
	}
	d := &Dimension{EntityBase: base}
	line, err := decodeLine(r, version)
	if err != nil {
		return nil, err
	}
	d.Line = *line
	text, err := decodeText(r, version)
	if err != nil {
		return nil, err
	}
	d.Text = *text
	if version < 420 {
		return d, nil
	}
	if d.SxfMode, err = r.u16("sxf mode"); err != nil {
		return nil, err
	}
	d.HasSxf = true
	d.AuxLines = make([]Line, 0, 2)
	for range 2 {
		l, err := decodeLine(r, version)
		if err != nil {
			return nil, err
		}
		d.AuxLines = append(d.AuxLines, *l)
	}
	d.AuxPoints = make([]Point, 0, 4)
	for range 4 {
		p, err := decodePoint(r, version)
		if err != nil {
			return nil, err
		}
		d.AuxPoints = append(d.AuxPoints, *p)
	}
	return d, nil
}

// decodeBlockDefs reads the trailing block definition list. It never
// fails: whatever was decoded before a problem is returned with a warning.
func decodeBlockDefs(r *reader, version uint32) ([]*BlockDef, []string) {
	start := r.pos
	count, err := r.u32("block definition count")
	if err != nil {
		return nil, []string{fmt.Sprintf("block definition count unreadable at offset %d", start)}
	}
	if count > maxBlockDefs {
		return nil, []string{fmt.Sprintf("block definition count %d exceeds %d; list ignored", count, maxBlockDefs)}
	}

	defs := make([]*BlockDef, 0, min(int(count), r.remaining()/minEntitySize))
	classes := newClassTable()
	var warnings []string
	for i := range int(count) {
		at := r.pos
		def, warn := decodeBlockDef(r, version, classes)
		if def != nil {
			defs = append(defs, def)
		}
		if warn != "" {
			warnings = append(warnings, fmt.Sprintf("block definition %d at offset %d: %s", i, at, warn))
			break
		}
	}
	return defs, warnings
}

// decodeBlockDef reads one CDataList record. A non-empty warning means
// the list must stop; def may still hold the partially decoded record.
func decodeBlockDef(r *reader, version uint32, classes *classTable) (*BlockDef, string) {
	name, bad, err := classes.readClass(r)
	switch {
	case err != nil:
		return nil, err.Error()
	case bad != nil:
		return nil, bad.Reason
	case name == "":
		return nil, ""
	case name != ClassBlockDef:
		return nil, "unexpected class " + name
	}

	base, err := decodeBase(r, version)
	if err != nil {
		return nil, err.Error()
	}
	def := &BlockDef{EntityBase: base}
	if def.Number, err = r.u32("block number"); err != nil {
		return nil, err.Error()
	}
	referenced, err := r.u32("block referenced")
	if err != nil {
		return nil, err.Error()
	}
	def.IsReferenced = referenced != 0
	if err := r.skip(4, "block timestamp"); err != nil {
		return nil, err.Error()
	}
	if def.Name, err = r.cstring("block name"); err != nil {
		return nil, err.Error()
	}
	def.Name = strings.TrimSpace(def.Name)
	classes.next++

	entities, stopped, err := decodeEntityList(r, version)
	if err != nil {
		return def, err.Error()
	}
	def.Entities = entities
	if stopped != nil {
		return def, stopped.Reason
	}
	return def, ""
}
