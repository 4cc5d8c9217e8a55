// Package render plots exchange documents as PNG or SVG images.
//
// Both outputs share one layout: entities are filtered, fitted into a
// square canvas with equal aspect, and flattened into strokes, marks and
// labels in pixel coordinates.
package render

import (
	"fmt"
	"image/color"
	"math"
	"slices"
	"strings"

	"github.com/FocuswithJustin/jwwconv/core/dxf"
	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/internal/report"
)

// MaxPixels bounds the canvas side.
const MaxPixels = 16384

// Options controls what is drawn and at which resolution.
type Options struct {
	// Layers restricts drawing to the named layers; empty draws all.
	Layers []string
	// Size is the canvas side in inches.
	Size float64
	DPI  int
	// LineWidth is the stroke width in points.
	LineWidth float64
	InvertY   bool
	NoText    bool
	NoPoints  bool
	NoInserts bool
}

// DefaultOptions returns a 10 inch canvas at 150 DPI.
func DefaultOptions() Options {
	return Options{Size: 10, DPI: 150, LineWidth: 0.8}
}

// Validate checks the canvas parameters.
func (o Options) Validate() error {
	if o.DPI <= 0 {
		return errors.NewValidation("dpi", fmt.Sprint(o.DPI), "must be positive")
	}
	if o.Size <= 0 || math.IsNaN(o.Size) || math.IsInf(o.Size, 0) {
		return errors.NewValidation("size", fmt.Sprint(o.Size), "must be a positive number of inches")
	}
	if o.LineWidth < 0 {
		return errors.NewValidation("line-width", fmt.Sprint(o.LineWidth), "must not be negative")
	}
	if px := o.Pixels(); px < 1 || px > MaxPixels {
		return errors.NewValidation("size", fmt.Sprint(o.Size), fmt.Sprintf("canvas of %d pixels is outside 1..%d", px, MaxPixels))
	}
	return nil
}

// Pixels returns the canvas side in pixels.
func (o Options) Pixels() int {
	return int(math.Round(o.Size * float64(o.DPI)))
}

func (o Options) points(pt float64) float64 {
	return pt * float64(o.DPI) / 72
}

var aciBase = map[int]color.RGBA{
	1: {0xff, 0x00, 0x00, 0xff},
	2: {0xff, 0xff, 0x00, 0xff},
	3: {0x00, 0xff, 0x00, 0xff},
	4: {0x00, 0xff, 0xff, 0xff},
	5: {0x00, 0x00, 0xff, 0xff},
	6: {0xff, 0x00, 0xff, 0xff},
	7: {0x00, 0x00, 0x00, 0xff},
	8: {0x80, 0x80, 0x80, 0xff},
	9: {0xc0, 0xc0, 0xc0, 0xff},
}

// ACIColor maps an AutoCAD color index to an opaque color. BYLAYER and
// non-positive indexes are black; indexes past 9 are spread over the hue
// circle.
func ACIColor(aci int) color.RGBA {
	if c, ok := aciBase[aci]; ok {
		return c
	}
	if aci <= 0 || aci == dxf.ColorByLayer {
		return color.RGBA{0, 0, 0, 0xff}
	}
	return hsv(float64(aci%255)/255, 0.7, 0.9)
}

func hsv(h, s, v float64) color.RGBA {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return color.RGBA{channel(r), channel(g), channel(b), 0xff}
}

func channel(x float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, x)) * 255))
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Stroke is a polyline in pixel coordinates.
type Stroke struct {
	Points []report.Point
	Closed bool
	// Filled strokes are painted with translucent fill before outlining.
	Filled bool
	Color  color.RGBA
	// Dash alternates dash and gap lengths in pixels; nil is solid.
	Dash  []float64
	Type  string
	Layer string
}

// Mark is a point marker or an insertion cross.
type Mark struct {
	At     report.Point
	Cross  bool
	Radius float64
	Color  color.RGBA
	Layer  string
}

// Label is a text run anchored at its lower-left corner.
type Label struct {
	At       report.Point
	Text     string
	Size     float64
	Rotation float64
	Color    color.RGBA
	Layer    string
}

// Scene is a laid-out plot.
type Scene struct {
	Width     int
	Height    int
	LineWidth float64
	Strokes   []Stroke
	Marks     []Mark
	Labels    []Label
}

// Layout fits the selected entities of doc into the canvas.
func Layout(doc *dxf.Document, opts Options) (*Scene, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	side := opts.Pixels()
	s := &Scene{Width: side, Height: side, LineWidth: math.Max(1, opts.points(opts.LineWidth))}
	if doc == nil {
		return s, nil
	}

	selected := selectEntities(doc.Entities, opts)
	bbox := report.ComputeBBox(selected)
	if bbox == nil {
		return s, nil
	}
	v := newViewport(bbox, float64(side), opts.InvertY)

	for _, e := range selected {
		p := e.Properties()
		c := ACIColor(p.Color)
		layer := layerName(p.Layer)
		dash := dashPattern(p.LineType, opts)
		stroke := func(pts []report.Point, closed, filled bool) {
			s.Strokes = append(s.Strokes, Stroke{
				Points: v.project(pts), Closed: closed, Filled: filled,
				Color: c, Dash: dash, Type: e.Type(), Layer: layer,
			})
		}

		switch ent := e.(type) {
		case *dxf.Line:
			stroke([]report.Point{{X: ent.X1, Y: ent.Y1}, {X: ent.X2, Y: ent.Y2}}, false, false)
		case *dxf.Circle:
			stroke(arcPolyline(ent.CenterX, ent.CenterY, ent.Radius, 0, 360), true, false)
		case *dxf.Arc:
			stroke(arcPolyline(ent.CenterX, ent.CenterY, ent.Radius, ent.StartAngle, ent.EndAngle), false, false)
		case *dxf.Ellipse:
			pts, full := ellipsePolyline(ent)
			stroke(pts, full, false)
		case *dxf.Solid:
			stroke([]report.Point{
				{X: ent.X1, Y: ent.Y1}, {X: ent.X2, Y: ent.Y2},
				{X: ent.X3, Y: ent.Y3}, {X: ent.X4, Y: ent.Y4},
			}, true, true)
		case *dxf.Point:
			s.Marks = append(s.Marks, Mark{
				At: v.point(ent.X, ent.Y), Radius: opts.points(2), Color: c, Layer: layer,
			})
		case *dxf.Insert:
			at := v.point(ent.X, ent.Y)
			s.Marks = append(s.Marks, Mark{At: at, Cross: true, Radius: opts.points(3), Color: c, Layer: layer})
			if ent.BlockName != "" {
				s.Labels = append(s.Labels, Label{At: at, Text: ent.BlockName, Size: opts.points(7), Color: c, Layer: layer})
			}
		case *dxf.Text:
			rot := ent.Rotation
			if !opts.InvertY {
				rot = -rot
			}
			s.Labels = append(s.Labels, Label{
				At:       v.point(ent.X, ent.Y),
				Text:     ent.Content,
				Size:     opts.points(math.Max(6, ent.Height)),
				Rotation: rot,
				Color:    c,
				Layer:    layer,
			})
		}
	}
	return s, nil
}

func layerName(layer string) string {
	if layer == "" {
		return dxf.DefaultLayer
	}
	return layer
}

func selectEntities(entities []dxf.Entity, opts Options) []dxf.Entity {
	var layers []string
	for _, l := range opts.Layers {
		if l = strings.TrimSpace(l); l != "" {
			layers = append(layers, l)
		}
	}
	out := make([]dxf.Entity, 0, len(entities))
	for _, e := range entities {
		if len(layers) > 0 && !slices.Contains(layers, layerName(e.Properties().Layer)) {
			continue
		}
		switch e.Type() {
		case dxf.TypeText:
			if opts.NoText {
				continue
			}
		case dxf.TypePoint:
			if opts.NoPoints {
				continue
			}
		case dxf.TypeInsert:
			if opts.NoInserts {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func dashPattern(lineType string, opts Options) []float64 {
	pattern := dxf.Pattern(lineType)
	if len(pattern) == 0 {
		return nil
	}
	unit := opts.points(10)
	dash := make([]float64, len(pattern))
	for i, v := range pattern {
		dash[i] = math.Abs(v) * unit
	}
	return dash
}

// viewport maps drawing units to pixels with equal aspect and a 5% margin.
type viewport struct {
	minX, minY float64
	scale      float64
	offX, offY float64
	side       float64
	invertY    bool
}

func newViewport(b *report.BBox, side float64, invertY bool) viewport {
	margin := side * 0.05
	inner := side - 2*margin
	scale := 1.0
	if extent := math.Max(b.Width, b.Height); extent > 0 {
		scale = inner / extent
	}
	return viewport{
		minX:    b.MinX,
		minY:    b.MinY,
		scale:   scale,
		offX:    (side - b.Width*scale) / 2,
		offY:    (side - b.Height*scale) / 2,
		side:    side,
		invertY: invertY,
	}
}

func (v viewport) point(x, y float64) report.Point {
	px := v.offX + (x-v.minX)*v.scale
	py := v.offY + (y-v.minY)*v.scale
	if !v.invertY {
		py = v.side - py
	}
	return report.Point{X: px, Y: py}
}

func (v viewport) project(pts []report.Point) []report.Point {
	out := make([]report.Point, len(pts))
	for i, p := range pts {
		out[i] = v.point(p.X, p.Y)
	}
	return out
}

// arcPolyline samples a counter-clockwise arc in degrees.
func arcPolyline(cx, cy, r, startDeg, endDeg float64) []report.Point {
	span := endDeg - startDeg
	if span <= 0 {
		span += 360
	}
	n := max(16, int(math.Ceil(64*span/360)))
	pts := make([]report.Point, 0, n+1)
	for i := 0; i <= n; i++ {
		a := (startDeg + span*float64(i)/float64(n)) * math.Pi / 180
		pts = append(pts, report.Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)})
	}
	return pts
}

// ellipsePolyline samples an ellipse and reports whether it is closed.
func ellipsePolyline(e *dxf.Ellipse) ([]report.Point, bool) {
	span := e.EndParam - e.StartParam
	if span <= 0 {
		span += 2 * math.Pi
	}
	full := math.Abs(span-2*math.Pi) < 1e-6
	n := max(24, int(64*span/(2*math.Pi)))

	vx := -e.MajorAxisY * e.MinorRatio
	vy := e.MajorAxisX * e.MinorRatio
	pts := make([]report.Point, 0, n+1)
	for i := 0; i <= n; i++ {
		t := e.StartParam + span*float64(i)/float64(n)
		c, s := math.Cos(t), math.Sin(t)
		pts = append(pts, report.Point{
			X: e.CenterX + e.MajorAxisX*c + vx*s,
			Y: e.CenterY + e.MajorAxisY*c + vy*s,
		})
	}
	return pts, full
}
