package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/jwwconv/core/dxf"
	"github.com/FocuswithJustin/jwwconv/core/xml"
	"github.com/FocuswithJustin/jwwconv/internal/report"
)

const svgNamespace = "http://www.w3.org/2000/svg"

// BuildSVG returns the scene as an SVG document. Each layer becomes a
// group carrying a data-layer attribute, in order of first appearance.
func BuildSVG(s *Scene) *xml.Document {
	doc := xml.NewDocument()
	root := doc.AddElement("svg",
		"xmlns", svgNamespace,
		"width", strconv.Itoa(s.Width),
		"height", strconv.Itoa(s.Height),
		"viewBox", fmt.Sprintf("0 0 %d %d", s.Width, s.Height),
	)
	root.AddElement("rect", "width", "100%", "height", "100%", "fill", "#ffffff")

	groups := map[string]*xml.Node{}
	group := func(layer string) *xml.Node {
		g, ok := groups[layer]
		if !ok {
			g = root.AddElement("g", "data-layer", layer)
			groups[layer] = g
		}
		return g
	}
	width := num(s.LineWidth)

	for _, st := range s.Strokes {
		if len(st.Points) < 2 {
			continue
		}
		tag := "polyline"
		if st.Closed {
			tag = "polygon"
		}
		el := group(st.Layer).AddElement(tag,
			"data-type", st.Type,
			"points", pointList(st.Points),
			"stroke", Hex(st.Color),
			"stroke-width", width,
		)
		if st.Filled {
			el.SetAttr("fill", Hex(st.Color))
			el.SetAttr("fill-opacity", num(solidAlpha))
		} else {
			el.SetAttr("fill", "none")
		}
		if len(st.Dash) > 0 {
			parts := make([]string, len(st.Dash))
			for i, d := range st.Dash {
				parts[i] = num(d)
			}
			el.SetAttr("stroke-dasharray", strings.Join(parts, " "))
		}
	}

	for _, m := range s.Marks {
		g := group(m.Layer)
		if m.Cross {
			x, y, r := m.At.X, m.At.Y, m.Radius
			g.AddElement("path",
				"data-type", dxf.TypeInsert,
				"d", fmt.Sprintf("M%s %sL%s %sM%s %sL%s %s",
					num(x-r), num(y-r), num(x+r), num(y+r),
					num(x-r), num(y+r), num(x+r), num(y-r)),
				"stroke", Hex(m.Color),
				"stroke-width", width,
			)
			continue
		}
		g.AddElement("circle",
			"data-type", dxf.TypePoint,
			"cx", num(m.At.X),
			"cy", num(m.At.Y),
			"r", num(m.Radius),
			"fill", Hex(m.Color),
		)
	}

	for _, l := range s.Labels {
		el := group(l.Layer).AddElement("text",
			"x", num(l.At.X),
			"y", num(l.At.Y),
			"font-size", num(l.Size),
			"fill", Hex(l.Color),
		)
		if l.Rotation != 0 {
			el.SetAttr("transform", fmt.Sprintf("rotate(%s %s %s)", num(l.Rotation), num(l.At.X), num(l.At.Y)))
		}
		el.AddText(l.Text)
	}
	return doc
}

func pointList(pts []report.Point) string {
	var b strings.Builder
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(num(p.X))
		b.WriteByte(',')
		b.WriteString(num(p.Y))
	}
	return b.String()
}

// num formats v with at most two decimals and no trailing zeros.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// EncodeSVG writes the scene as an SVG document.
func EncodeSVG(w io.Writer, s *Scene) error {
	return BuildSVG(s).Write(w, xml.FormatOptions{Indent: "  "})
}

// SVG plots doc as an SVG document.
func SVG(w io.Writer, doc *dxf.Document, opts Options) error {
	s, err := Layout(doc, opts)
	if err != nil {
		return err
	}
	return EncodeSVG(w, s)
}
