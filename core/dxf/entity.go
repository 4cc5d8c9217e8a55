// Package dxf builds DXF documents from decoded Jw_cad drawings and writes
// them as AutoCAD R2000 (AC1015) ASCII.
package dxf

import "encoding/json"

// Entity type tags.
const (
	TypeLine    = "LINE"
	TypeCircle  = "CIRCLE"
	TypeArc     = "ARC"
	TypeEllipse = "ELLIPSE"
	TypePoint   = "POINT"
	TypeText    = "TEXT"
	TypeSolid   = "SOLID"
	TypeInsert  = "INSERT"
)

// Entity is one exchange record. The set of implementations is closed.
type Entity interface {
	// Type returns the upper-case DXF entity name.
	Type() string
	// Properties returns the layer, color and line type.
	Properties() Props
	isEntity()
}

// Props are the attributes every entity carries. Color 256 means BYLAYER.
type Props struct {
	Layer    string `json:"layer"`
	Color    int    `json:"color"`
	LineType string `json:"line_type"`
}

// Properties implements Entity.
func (p Props) Properties() Props { return p }

type Line struct {
	Props
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

type Circle struct {
	Props
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Radius  float64 `json:"radius"`
}

// Arc angles are degrees in [0, 360). The arc runs counter-clockwise from
// StartAngle to EndAngle, wrapping past 360 when EndAngle is smaller.
type Arc struct {
	Props
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	Radius     float64 `json:"radius"`
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
}

// Ellipse is defined by its major-axis end point relative to the center.
// Parameters are radians and follow the Arc wrap rule over 2π.
type Ellipse struct {
	Props
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	MajorAxisX float64 `json:"major_axis_x"`
	MajorAxisY float64 `json:"major_axis_y"`
	MinorRatio float64 `json:"minor_ratio"`
	StartParam float64 `json:"start_param"`
	EndParam   float64 `json:"end_param"`
}

type Point struct {
	Props
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Text rotation is in degrees.
type Text struct {
	Props
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	Content  string  `json:"content"`
	Style    string  `json:"style"`
}

type Solid struct {
	Props
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
	X3 float64 `json:"x3"`
	Y3 float64 `json:"y3"`
	X4 float64 `json:"x4"`
	Y4 float64 `json:"y4"`
}

// Insert places a block. Rotation is in degrees.
type Insert struct {
	Props
	BlockName string  `json:"block_name"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ScaleX    float64 `json:"scale_x"`
	ScaleY    float64 `json:"scale_y"`
	Rotation  float64 `json:"rotation"`
}

func (*Line) Type() string    { return TypeLine }
func (*Circle) Type() string  { return TypeCircle }
func (*Arc) Type() string     { return TypeArc }
func (*Ellipse) Type() string { return TypeEllipse }
func (*Point) Type() string   { return TypePoint }
func (*Text) Type() string    { return TypeText }
func (*Solid) Type() string   { return TypeSolid }
func (*Insert) Type() string  { return TypeInsert }

func (*Line) isEntity()    {}
func (*Circle) isEntity()  {}
func (*Arc) isEntity()     {}
func (*Ellipse) isEntity() {}
func (*Point) isEntity()   {}
func (*Text) isEntity()    {}
func (*Solid) isEntity()   {}
func (*Insert) isEntity()  {}

// Each variant marshals as a flat record with a "type" tag ahead of its
// fields.

func (e *Line) MarshalJSON() ([]byte, error) {
	type plain Line
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{e.Type(), (*plain)(e)})
}

func (e *Circle) MarshalJSON() ([]byte, error) {
	type plain Circle
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{e.Type(), (*plain)(e)})
}

func (e *Arc) MarshalJSON() ([]byte, error) {
	type plain Arc
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{e.Type(), (*plain)(e)})
}

func (e *Ellipse) MarshalJSON() ([]byte, error) {
	type plain Ellipse
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{e.Type(), (*plain)(e)})
}

func (e *Point) MarshalJSON() ([]byte, error) {
	type plain Point
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{e.Type(), (*plain)(e)})
}

func (e *Text) MarshalJSON() ([]byte, error) {
	type plain Text
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{e.Type(), (*plain)(e)})
}

func (e *Solid) MarshalJSON() ([]byte, error) {
	type plain Solid
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{e.Type(), (*plain)(e)})
}

func (e *Insert) MarshalJSON() ([]byte, error) {
	type plain Insert
	return json.Marshal(struct {
		Type string `json:"type"`
		*plain
	}{e.Type(), (*plain)(e)})
}
