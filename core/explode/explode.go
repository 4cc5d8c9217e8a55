// Package explode replaces block insertions with transformed copies of the
// block contents.
//
// Expansion walks an explicit stack of frames rather than recursing, and
// the nesting bound is checked before a frame is pushed. A block may be
// entered any number of times along different paths; only the depth of
// the current path is limited.
package explode

import (
	"math"
	"strconv"

	"github.com/FocuswithJustin/jwwconv/core/blocks"
	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/core/geom"
	"github.com/FocuswithJustin/jwwconv/core/jww"
)

// DefaultMaxNesting is the nesting bound used when none is configured.
const DefaultMaxNesting = 32

// minTextHeight is the smallest height a scaled text record keeps.
const minTextHeight = 0.1

// Options controls expansion.
type Options struct {
	Explode    bool
	MaxNesting int
}

// Validate rejects a nesting bound below 1.
func (o Options) Validate() error {
	if o.MaxNesting < 1 {
		return errors.NewValidation("max_block_nesting", strconv.Itoa(o.MaxNesting), "must be >= 1")
	}
	return nil
}

// Result is the expanded entity list.
type Result struct {
	Entities []jww.Entity
	// DepthLimited lists the block numbers of insertions left in place
	// because entering them would exceed the bound, in output order.
	DepthLimited []uint32
	// Unresolved lists insertions whose block does not exist, in output
	// order.
	Unresolved []uint32
	// Expanded counts insertions replaced by block contents.
	Expanded int
}

type frame struct {
	entities []jww.Entity
	next     int
	xf       geom.Affine
	depth    int
}

// Expand applies opts to entities. With Explode unset the input is
// returned as is. Source entities are never modified.
func Expand(entities []jww.Entity, table *blocks.Table, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if !opts.Explode {
		return Result{Entities: entities}, nil
	}

	var res Result
	res.Entities = make([]jww.Entity, 0, len(entities))
	stack := []frame{{entities: entities, xf: geom.Identity()}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.entities) {
			stack = stack[:len(stack)-1]
			continue
		}
		e := top.entities[top.next]
		top.next++

		ref, ok := e.(*jww.BlockRef)
		if !ok {
			res.Entities = append(res.Entities, Transform(e, top.xf))
			continue
		}
		def, found := table.Lookup(ref.DefNumber)
		switch {
		case !found:
			res.Unresolved = append(res.Unresolved, ref.DefNumber)
			res.Entities = append(res.Entities, Transform(ref, top.xf))
		case top.depth+1 > opts.MaxNesting:
			res.DepthLimited = append(res.DepthLimited, ref.DefNumber)
			res.Entities = append(res.Entities, Transform(ref, top.xf))
		default:
			xf := top.xf.
				Then(geom.Insert(ref.RefX, ref.RefY, ref.Rotation, ref.ScaleX, ref.ScaleY)).
				Then(geom.Translate(-def.BaseX, -def.BaseY))
			res.Expanded++
			stack = append(stack, frame{entities: def.Entities, xf: xf, depth: top.depth + 1})
		}
	}
	return res, nil
}

// Transform returns e mapped through xf. The identity returns e itself;
// any other transform returns a copy.
func Transform(e jww.Entity, xf geom.Affine) jww.Entity {
	if xf.IsIdentity() {
		return e
	}
	switch v := e.(type) {
	case *jww.Line:
		l := transformLine(*v, xf)
		return &l
	case *jww.Arc:
		return transformArc(v, xf)
	case *jww.Point:
		p := transformPoint(*v, xf)
		return &p
	case *jww.Text:
		t := transformText(*v, xf)
		return &t
	case *jww.Solid:
		s := *v
		s.X1, s.Y1 = xf.Apply(v.X1, v.Y1)
		s.X2, s.Y2 = xf.Apply(v.X2, v.Y2)
		s.X3, s.Y3 = xf.Apply(v.X3, v.Y3)
		s.X4, s.Y4 = xf.Apply(v.X4, v.Y4)
		return &s
	case *jww.BlockRef:
		return transformRef(v, xf)
	case *jww.Dimension:
		return transformDimension(v, xf)
	}
	return e
}

func transformLine(l jww.Line, xf geom.Affine) jww.Line {
	l.StartX, l.StartY = xf.Apply(l.StartX, l.StartY)
	l.EndX, l.EndY = xf.Apply(l.EndX, l.EndY)
	return l
}

func transformPoint(p jww.Point, xf geom.Affine) jww.Point {
	p.X, p.Y = xf.Apply(p.X, p.Y)
	return p
}

func transformText(t jww.Text, xf geom.Affine) jww.Text {
	t.StartX, t.StartY = xf.Apply(t.StartX, t.StartY)
	t.EndX, t.EndY = xf.Apply(t.EndX, t.EndY)
	scale := xf.MeanScale()
	t.SizeX *= scale
	if t.SizeY > 0 {
		t.SizeY = math.Max(t.SizeY*scale, minTextHeight)
	}
	t.Angle += xf.Rotation() * 180 / math.Pi
	return t
}

// transformArc maps the arc exactly. Circular arcs store absolute angles,
// so their tilt is dropped before the conic is built.
func transformArc(a *jww.Arc, xf geom.Affine) *jww.Arc {
	c := geom.Conic{
		CenterX: a.CenterX, CenterY: a.CenterY,
		Radius:   a.Radius,
		Flatness: a.Flatness,
		Tilt:     a.TiltAngle,
		Start:    a.StartAngle,
		Sweep:    a.ArcAngle,
	}
	if c.IsCircular() {
		c.Tilt = 0
	}
	out := geom.TransformConic(xf, c)
	arc := *a
	arc.CenterX, arc.CenterY = out.CenterX, out.CenterY
	arc.Radius = out.Radius
	arc.Flatness = out.Flatness
	arc.TiltAngle = out.Tilt
	arc.StartAngle = out.Start
	arc.ArcAngle = out.Sweep
	return &arc
}

// transformRef composes the insertion onto xf and decomposes the result
// back into a placement.
func transformRef(r *jww.BlockRef, xf geom.Affine) *jww.BlockRef {
	m := xf.Then(geom.Insert(r.RefX, r.RefY, r.Rotation, r.ScaleX, r.ScaleY))
	ref := *r
	ref.RefX, ref.RefY = m.Tx, m.Ty
	ref.Rotation = m.Rotation()
	ref.ScaleX, ref.ScaleY = m.Scales()
	return &ref
}

func transformDimension(d *jww.Dimension, xf geom.Affine) *jww.Dimension {
	dim := *d
	dim.Line = transformLine(d.Line, xf)
	dim.Text = transformText(d.Text, xf)
	if d.AuxLines != nil {
		dim.AuxLines = make([]jww.Line, len(d.AuxLines))
		for i, l := range d.AuxLines {
			dim.AuxLines[i] = transformLine(l, xf)
		}
	}
	if d.AuxPoints != nil {
		dim.AuxPoints = make([]jww.Point, len(d.AuxPoints))
		for i, p := range d.AuxPoints {
			dim.AuxPoints[i] = transformPoint(p, xf)
		}
	}
	return &dim
}
