package render

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/FocuswithJustin/jwwconv/core/dxf"
	"github.com/FocuswithJustin/jwwconv/internal/report"
)

// solidAlpha is the opacity of SOLID fills.
const solidAlpha = 0.3

// Rasterize draws the scene onto a white RGBA image.
func Rasterize(s *Scene) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(s.Width, s.Height, img, img.Bounds())
	dasher := rasterx.NewDasher(s.Width, s.Height, scanner)
	filler := rasterx.NewFiller(s.Width, s.Height, scanner)
	width := fixed.Int26_6(s.LineWidth * 64)

	for _, st := range s.Strokes {
		if len(st.Points) < 2 {
			continue
		}
		if st.Filled {
			filler.Clear()
			filler.SetColor(rasterx.ApplyOpacity(st.Color, solidAlpha))
			addPath(filler, st.Points, true)
			filler.Draw()
		}
		dasher.Clear()
		dasher.SetStroke(width, 4*64, rasterx.ButtCap, rasterx.ButtCap, rasterx.FlatGap, rasterx.Round, st.Dash, 0)
		dasher.SetColor(st.Color)
		addPath(dasher, st.Points, st.Closed)
		dasher.Draw()
	}

	for _, m := range s.Marks {
		if m.Cross {
			dasher.Clear()
			dasher.SetStroke(width, 4*64, rasterx.ButtCap, rasterx.ButtCap, rasterx.FlatGap, rasterx.Round, nil, 0)
			dasher.SetColor(m.Color)
			r := m.Radius
			addPath(dasher, []report.Point{{X: m.At.X - r, Y: m.At.Y - r}, {X: m.At.X + r, Y: m.At.Y + r}}, false)
			addPath(dasher, []report.Point{{X: m.At.X - r, Y: m.At.Y + r}, {X: m.At.X + r, Y: m.At.Y - r}}, false)
			dasher.Draw()
			continue
		}
		filler.Clear()
		filler.SetColor(m.Color)
		rasterx.AddCircle(m.At.X, m.At.Y, math.Max(1, m.Radius), filler)
		filler.Draw()
	}

	for _, l := range s.Labels {
		drawLabel(img, l)
	}
	return img
}

func addPath(a rasterx.Adder, pts []report.Point, closed bool) {
	a.Start(rasterx.ToFixedP(pts[0].X, pts[0].Y))
	for _, p := range pts[1:] {
		a.Line(rasterx.ToFixedP(p.X, p.Y))
	}
	a.Stop(closed)
}

// drawLabel renders ASCII text with the built-in 7x13 face. The face has
// no rotation or scaling, so labels are always horizontal.
func drawLabel(img draw.Image, l Label) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(l.Color),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(math.Round(l.At.X)), int(math.Round(l.At.Y))),
	}
	d.DrawString(l.Text)
}

// EncodePNG writes the scene as a PNG image.
func EncodePNG(w io.Writer, s *Scene) error {
	if err := png.Encode(w, Rasterize(s)); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// PNG plots doc as a PNG image.
func PNG(w io.Writer, doc *dxf.Document, opts Options) error {
	s, err := Layout(doc, opts)
	if err != nil {
		return err
	}
	return EncodePNG(w, s)
}
