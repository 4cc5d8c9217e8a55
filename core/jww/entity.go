package jww

// Entity is a decoded drawing record. The set of implementations is closed;
// records the decoder cannot interpret arrive as *Unsupported.
type Entity interface {
	// Kind returns the upper-case type tag used for entity counts.
	Kind() string
	// Base returns the attributes shared by every record.
	Base() EntityBase
	isEntity()
}

// EntityBase carries the pen and layer attributes common to all records.
type EntityBase struct {
	Group      uint32
	PenStyle   uint8
	PenColor   uint16
	PenWidth   uint16 // version >= 351 only
	Layer      uint16
	LayerGroup uint16
	Flag       uint16
}

// Base implements Entity for every record that embeds EntityBase.
func (b EntityBase) Base() EntityBase { return b }

// Line is a CDataSen record.
type Line struct {
	EntityBase
	StartX, StartY float64
	EndX, EndY     float64
}

// Arc is a CDataEnko record. It covers circles, circular arcs and
// elliptical arcs: Flatness is the minor/major ratio and TiltAngle the
// major-axis direction. Angles are radians.
type Arc struct {
	EntityBase
	CenterX, CenterY float64
	Radius           float64
	StartAngle       float64
	ArcAngle         float64
	TiltAngle        float64
	Flatness         float64
	FullCircle       bool
}

// Point is a CDataTen record. Temporary points are construction aids.
type Point struct {
	EntityBase
	X, Y      float64
	Temporary bool
	Code      uint32
	Angle     float64
	Scale     float64
}

// Text is a CDataMoji record. Angle is in degrees.
type Text struct {
	EntityBase
	StartX, StartY float64
	EndX, EndY     float64
	TextType       uint32
	SizeX, SizeY   float64
	Spacing        float64
	Angle          float64
	FontName       string
	Content        string
}

// Solid is a CDataSolid record with its corners in drawing order.
type Solid struct {
	EntityBase
	X1, Y1   float64
	X2, Y2   float64
	X3, Y3   float64
	X4, Y4   float64
	Color    uint32
	HasColor bool
}

// BlockRef is a CDataBlock record: an insertion of block DefNumber at
// (RefX, RefY), rotated by Rotation radians and scaled per axis.
type BlockRef struct {
	EntityBase
	RefX, RefY     float64
	ScaleX, ScaleY float64
	Rotation       float64
	DefNumber      uint32
}

// Dimension is a CDataSunpou record.
type Dimension struct {
	EntityBase
	Line      Line
	Text      Text
	SxfMode   uint16
	HasSxf    bool
	AuxLines  []Line
	AuxPoints []Point
}

// Unsupported is a record whose class the decoder cannot interpret.
// Tag is the raw class name or a synthetic tag for malformed class data.
type Unsupported struct {
	EntityBase
	Tag    string
	Reason string
}

func (*Line) Kind() string  { return "LINE" }
func (*Point) Kind() string { return "POINT" }
func (*Text) Kind() string  { return "TEXT" }
func (*Solid) Kind() string { return "SOLID" }

func (a *Arc) Kind() string {
	if a.FullCircle {
		return "CIRCLE"
	}
	return "ARC"
}

func (*BlockRef) Kind() string    { return "BLOCK" }
func (*Dimension) Kind() string   { return "DIMENSION" }
func (*Unsupported) Kind() string { return "UNSUPPORTED" }

func (*Line) isEntity()        {}
func (*Arc) isEntity()         {}
func (*Point) isEntity()       {}
func (*Text) isEntity()        {}
func (*Solid) isEntity()       {}
func (*BlockRef) isEntity()    {}
func (*Dimension) isEntity()   {}
func (*Unsupported) isEntity() {}

// BlockDef is a reusable group of entities keyed by Number.
// Jw_cad stores no base point; BaseX and BaseY are always the origin.
type BlockDef struct {
	EntityBase
	Number       uint32
	Name         string
	BaseX, BaseY float64
	IsReferenced bool
	Entities     []Entity
}

// CountKinds tallies entities by Kind.
func CountKinds(entities []Entity) map[string]int {
	counts := make(map[string]int)
	for _, e := range entities {
		counts[e.Kind()]++
	}
	return counts
}
