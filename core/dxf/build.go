package dxf

import (
	"math"

	"github.com/FocuswithJustin/jwwconv/core/blocks"
	"github.com/FocuswithJustin/jwwconv/core/explode"
	"github.com/FocuswithJustin/jwwconv/core/geom"
	"github.com/FocuswithJustin/jwwconv/core/jww"
)

const (
	// ColorByLayer is the ACI value meaning "use the layer color".
	ColorByLayer = 256
	// DefaultLayer is the layer of entities whose source layer is invalid.
	DefaultLayer = "0"
	// DefaultStyle is the only text style written.
	DefaultStyle = "STANDARD"
	// defaultTextHeight replaces missing text heights.
	defaultTextHeight = 2.5
)

// Line type names.
const (
	LineTypeByLayer    = "BYLAYER"
	LineTypeByBlock    = "BYBLOCK"
	LineTypeContinuous = "CONTINUOUS"
	LineTypeDashed     = "DASHED"
	LineTypeDashDot    = "DASHDOT"
	LineTypeDot        = "DOT"
	LineTypeDashed2    = "DASHED2"
)

// Build converts a decoded drawing. Options are validated before any
// work; with Explode set, insertions are expanded through package
// explode and only blocks still referenced by depth-limited stubs are
// kept.
func Build(d *jww.Drawing, table *blocks.Table, opts explode.Options) (*Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	doc := &Document{
		Layers:      []Layer{},
		Blocks:      []Block{},
		Entities:    []Entity{},
		Unsupported: []UnsupportedEntity{},
	}
	if d == nil {
		return doc, nil
	}

	b := &builder{header: d.Header, table: table, doc: doc, skipped: map[jww.Entity]bool{}}
	doc.Layers = b.layers()

	res, err := explode.Expand(d.Entities, table, opts)
	if err != nil {
		return nil, err
	}
	doc.Entities = b.entities(res.Entities)
	doc.DepthLimited = res.DepthLimited

	var keep []*jww.BlockDef
	if opts.Explode {
		keep = b.closure(res.DepthLimited)
	} else {
		keep = b.primaryDefs()
	}
	for _, def := range keep {
		doc.Blocks = append(doc.Blocks, Block{
			Name:     table.Name(def.Number),
			BaseX:    def.BaseX,
			BaseY:    def.BaseY,
			Entities: b.entities(def.Entities),
		})
	}
	return doc, nil
}

type builder struct {
	header *jww.Header
	table  *blocks.Table
	doc    *Document
	// skipped holds source entities already reported as unsupported.
	// Expansion passes them through unchanged, so one source entity can
	// reach the builder from several insertions and from a kept block.
	skipped map[jww.Entity]bool
}

func (b *builder) layers() []Layer {
	if b.header == nil {
		return []Layer{}
	}
	out := make([]Layer, 0, jww.GroupCount*jww.LayersPerGroup)
	for g, group := range b.header.LayerGroups {
		for l, layer := range group.Layers {
			name, _ := b.header.LayerName(uint16(g), uint16(l))
			out = append(out, Layer{
				Name:     name,
				Color:    (g*jww.LayersPerGroup+l)%255 + 1,
				LineType: LineTypeContinuous,
				Frozen:   layer.State == 0,
				Locked:   layer.Protect != 0,
			})
		}
	}
	return out
}

// primaryDefs returns the definitions that won their block number, in
// source order.
func (b *builder) primaryDefs() []*jww.BlockDef {
	var out []*jww.BlockDef
	for _, def := range b.table.Defs() {
		if def == nil {
			continue
		}
		if winner, ok := b.table.Lookup(def.Number); ok && winner == def {
			out = append(out, def)
		}
	}
	return out
}

// closure returns the definitions reachable from numbers through nested
// insertions, in source order.
func (b *builder) closure(numbers []uint32) []*jww.BlockDef {
	if len(numbers) == 0 {
		return nil
	}
	seen := make(map[uint32]bool)
	queue := append([]uint32(nil), numbers...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		def, ok := b.table.Lookup(n)
		if !ok {
			continue
		}
		seen[n] = true
		for _, e := range def.Entities {
			if ref, ok := e.(*jww.BlockRef); ok && !seen[ref.DefNumber] {
				queue = append(queue, ref.DefNumber)
			}
		}
	}
	var out []*jww.BlockDef
	for _, def := range b.primaryDefs() {
		if seen[def.Number] {
			out = append(out, def)
		}
	}
	return out
}

func (b *builder) entities(in []jww.Entity) []Entity {
	out := make([]Entity, 0, len(in))
	for _, e := range in {
		out = b.appendEntity(out, e)
	}
	return out
}

func (b *builder) props(base jww.EntityBase) Props {
	return Props{
		Layer:    b.layerName(base.LayerGroup, base.Layer),
		Color:    MapColor(base.PenColor),
		LineType: MapLineType(base.PenStyle),
	}
}

func (b *builder) layerName(group, layer uint16) string {
	if b.header == nil {
		return DefaultLayer
	}
	if name, ok := b.header.LayerName(group, layer); ok {
		return name
	}
	return DefaultLayer
}

func (b *builder) appendEntity(out []Entity, e jww.Entity) []Entity {
	p := b.props(e.Base())
	switch v := e.(type) {
	case *jww.Line:
		return append(out, &Line{Props: p, X1: v.StartX, Y1: v.StartY, X2: v.EndX, Y2: v.EndY})
	case *jww.Arc:
		return append(out, convertArc(v, p))
	case *jww.Point:
		if v.Temporary {
			return out
		}
		return append(out, &Point{Props: p, X: v.X, Y: v.Y})
	case *jww.Text:
		return append(out, convertText(v, p))
	case *jww.Solid:
		return append(out, &Solid{Props: p,
			X1: v.X1, Y1: v.Y1, X2: v.X2, Y2: v.Y2,
			X3: v.X3, Y3: v.Y3, X4: v.X4, Y4: v.Y4,
		})
	case *jww.BlockRef:
		return append(out, &Insert{
			Props:     p,
			BlockName: b.table.Name(v.DefNumber),
			X:         v.RefX,
			Y:         v.RefY,
			ScaleX:    v.ScaleX,
			ScaleY:    v.ScaleY,
			Rotation:  degrees(v.Rotation),
		})
	case *jww.Dimension:
		return append(out,
			&Line{Props: p, X1: v.Line.StartX, Y1: v.Line.StartY, X2: v.Line.EndX, Y2: v.Line.EndY},
			convertText(&v.Text, p),
		)
	case *jww.Unsupported:
		b.unsupported(e, UnsupportedEntity{Type: v.Tag, Reason: v.Reason})
		return out
	}
	b.unsupported(e, UnsupportedEntity{Type: e.Kind()})
	return out
}

func (b *builder) unsupported(src jww.Entity, u UnsupportedEntity) {
	if b.skipped[src] {
		return
	}
	b.skipped[src] = true
	b.doc.Unsupported = append(b.doc.Unsupported, u)
}

func convertText(t *jww.Text, p Props) *Text {
	height := t.SizeY
	if height <= 0 {
		height = defaultTextHeight
	}
	return &Text{
		Props:    p,
		X:        t.StartX,
		Y:        t.StartY,
		Height:   height,
		Rotation: t.Angle,
		Content:  t.Content,
		Style:    DefaultStyle,
	}
}

// convertArc picks CIRCLE, ELLIPSE or ARC. Jw_cad arcs run
// counter-clockwise for a positive sweep; a negative sweep is flipped so
// the DXF interval still runs from start to end.
func convertArc(a *jww.Arc, p Props) Entity {
	if a.Flatness != 1 {
		return convertEllipse(a, p)
	}
	if a.FullCircle {
		return &Circle{Props: p, CenterX: a.CenterX, CenterY: a.CenterY, Radius: a.Radius}
	}
	start, sweep := degrees(a.StartAngle), degrees(a.ArcAngle)
	if math.Abs(sweep) >= 360 {
		return &Circle{Props: p, CenterX: a.CenterX, CenterY: a.CenterY, Radius: a.Radius}
	}
	if sweep < 0 {
		start, sweep = start+sweep, -sweep
	}
	return &Arc{
		Props:      p,
		CenterX:    a.CenterX,
		CenterY:    a.CenterY,
		Radius:     a.Radius,
		StartAngle: geom.NormalizeDegrees(start),
		EndAngle:   geom.NormalizeDegrees(start + sweep),
	}
}

func convertEllipse(a *jww.Arc, p Props) *Ellipse {
	major, ratio, tilt := a.Radius, a.Flatness, a.TiltAngle
	start, sweep := a.StartAngle, a.ArcAngle
	if ratio > 1 {
		// the minor axis is the longer one; swap so the ratio stays <= 1
		// and shift the parameter origin to the new major axis
		major, ratio, tilt = a.Radius*a.Flatness, 1/a.Flatness, tilt+math.Pi/2
		start -= math.Pi / 2
	}
	e := &Ellipse{
		Props:      p,
		CenterX:    a.CenterX,
		CenterY:    a.CenterY,
		MajorAxisX: major * math.Cos(tilt),
		MajorAxisY: major * math.Sin(tilt),
		MinorRatio: ratio,
		StartParam: 0,
		EndParam:   2 * math.Pi,
	}
	if a.FullCircle || math.Abs(sweep) >= 2*math.Pi {
		return e
	}
	if sweep < 0 {
		start, sweep = start+sweep, -sweep
	}
	e.StartParam = geom.NormalizeRadians(start)
	e.EndParam = geom.NormalizeRadians(start + sweep)
	return e
}

// MapColor converts a Jw_cad pen color to an AutoCAD color index.
func MapColor(pen uint16) int {
	switch pen {
	case 0:
		return ColorByLayer
	case 1, 8:
		return 7
	case 2:
		return 5
	case 3:
		return 1
	case 4:
		return 6
	case 5:
		return 3
	case 6:
		return 4
	case 7:
		return 2
	case 9:
		return 8
	}
	return max(int(pen)%255, 1)
}

// MapLineType converts a Jw_cad pen style to a line type name.
func MapLineType(style uint8) string {
	switch style {
	case 0:
		return LineTypeContinuous
	case 1:
		return LineTypeDashed
	case 2:
		return LineTypeDashDot
	case 3:
		return LineTypeDot
	case 4:
		return LineTypeDashed2
	}
	return LineTypeByLayer
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
