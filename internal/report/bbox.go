package report

import (
	"math"

	"github.com/FocuswithJustin/jwwconv/core/dxf"
)

// BBox is the axis-aligned extent of a set of entities.
type BBox struct {
	MinX   float64 `json:"min_x"`
	MinY   float64 `json:"min_y"`
	MaxX   float64 `json:"max_x"`
	MaxY   float64 `json:"max_y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	// EntityCount is the number of entities that contributed a point.
	EntityCount int `json:"entity_count"`
}

// Point is a 2D position.
type Point struct{ X, Y float64 }

// ComputeBBox returns the extent of entities, or nil when none of them
// has a position.
func ComputeBBox(entities []dxf.Entity) *BBox {
	var b *BBox
	for _, e := range entities {
		pts := EntityPoints(e)
		if len(pts) == 0 {
			continue
		}
		if b == nil {
			b = &BBox{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
		}
		b.EntityCount++
		for _, p := range pts {
			b.MinX = math.Min(b.MinX, p.X)
			b.MinY = math.Min(b.MinY, p.Y)
			b.MaxX = math.Max(b.MaxX, p.X)
			b.MaxY = math.Max(b.MaxY, p.Y)
		}
	}
	if b != nil {
		b.Width = b.MaxX - b.MinX
		b.Height = b.MaxY - b.MinY
	}
	return b
}

// EntityPoints returns the points that bound e. Curves contribute their
// extreme points over the swept range.
func EntityPoints(e dxf.Entity) []Point {
	switch v := e.(type) {
	case *dxf.Line:
		return []Point{{v.X1, v.Y1}, {v.X2, v.Y2}}
	case *dxf.Point:
		return []Point{{v.X, v.Y}}
	case *dxf.Text:
		return []Point{{v.X, v.Y}}
	case *dxf.Insert:
		return []Point{{v.X, v.Y}}
	case *dxf.Solid:
		return []Point{{v.X1, v.Y1}, {v.X2, v.Y2}, {v.X3, v.Y3}, {v.X4, v.Y4}}
	case *dxf.Circle:
		r := math.Abs(v.Radius)
		return []Point{
			{v.CenterX - r, v.CenterY},
			{v.CenterX + r, v.CenterY},
			{v.CenterX, v.CenterY - r},
			{v.CenterX, v.CenterY + r},
		}
	case *dxf.Arc:
		return arcPoints(v.CenterX, v.CenterY, math.Abs(v.Radius), v.StartAngle, v.EndAngle)
	case *dxf.Ellipse:
		return ellipsePoints(v)
	}
	return nil
}

func arcPoints(cx, cy, r, startDeg, endDeg float64) []Point {
	if r <= 0 {
		return []Point{{cx, cy}}
	}
	start := math.Mod(startDeg, 360)
	if start < 0 {
		start += 360
	}
	end := math.Mod(endDeg, 360)
	if end < 0 {
		end += 360
	}
	if end < start {
		end += 360
	}

	at := func(deg float64) Point {
		rad := deg * math.Pi / 180
		return Point{cx + r*math.Cos(rad), cy + r*math.Sin(rad)}
	}
	pts := []Point{at(start), at(end)}
	for _, q := range []float64{0, 90, 180, 270} {
		for q < start {
			q += 360
		}
		if q <= end {
			pts = append(pts, at(q))
		}
	}
	return pts
}

// ellipsePoints samples the ellipse densely enough that the extent is
// within a small fraction of the true one.
func ellipsePoints(e *dxf.Ellipse) []Point {
	start, end := e.StartParam, e.EndParam
	if end <= start {
		end += 2 * math.Pi
	}
	span := math.Max(0, end-start)
	n := max(48, int(math.Ceil(128*span/(2*math.Pi))))

	minorX := -e.MajorAxisY * e.MinorRatio
	minorY := e.MajorAxisX * e.MinorRatio
	pts := make([]Point, 0, n+1)
	for i := 0; i <= n; i++ {
		t := start + span*float64(i)/float64(n)
		c, s := math.Cos(t), math.Sin(t)
		pts = append(pts, Point{
			e.CenterX + e.MajorAxisX*c + minorX*s,
			e.CenterY + e.MajorAxisY*c + minorY*s,
		})
	}
	return pts
}
