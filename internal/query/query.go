// Package query selects exchange entities with a small selector language:
//
//	LINE ARC                     entities of either type
//	*[layer == "Walls"]          every entity on layer Walls
//	TEXT[layer == 'A' and color == 7]
//
// Types are case-insensitive and may be separated by spaces or commas.
// Filters are joined by ",", "&&" or "and"; each field may appear once.
package query

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/jwwconv/core/dxf"
	"github.com/FocuswithJustin/jwwconv/core/errors"
)

// selectorGrammar is the participle grammar for selectors.
//
//nolint:govet // participle grammar tags are not standard struct tags
type selectorGrammar struct {
	All     bool         `( @"*"`
	Types   []string     `  | @Ident ( ","? @Ident )* )?`
	Filters []*filterArg `( "[" @@ ( ( "," | "&&" | "and" ) @@ )* "]" )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type filterArg struct {
	Field  string  `@Ident "=="`
	String *string `( @String`
	Int    *int    `| @Int )`
}

var selectorLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"[^"]*"|'[^']*'`},
	{Name: "Int", Pattern: `-?[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Op", Pattern: `==|&&`},
	{Name: "Punct", Pattern: `[\[\],*]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var selectorParser = participle.MustBuild[selectorGrammar](
	participle.Lexer(selectorLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Ident"),
)

// Selector matches entities by type, layer and color. A nil field
// matches everything.
type Selector struct {
	// Types holds upper-case type tags; nil selects every type.
	Types []string
	Layer *string
	Color *int

	text string
}

// Parse compiles a selector. An empty string selects every entity.
func Parse(s string) (*Selector, error) {
	text := strings.TrimSpace(s)
	sel := &Selector{text: text}
	if text == "" {
		return sel, nil
	}

	parsed, err := selectorParser.ParseString("", text)
	if err != nil {
		return nil, errors.NewValidation("selector", s, fmt.Sprintf("invalid query selector: %v", err))
	}
	if !parsed.All && len(parsed.Types) > 0 {
		for _, t := range parsed.Types {
			t = strings.ToUpper(t)
			if !slices.Contains(sel.Types, t) {
				sel.Types = append(sel.Types, t)
			}
		}
		slices.Sort(sel.Types)
	}

	for _, f := range parsed.Filters {
		switch {
		case strings.EqualFold(f.Field, "layer") && f.String != nil:
			if sel.Layer != nil {
				return nil, errors.NewValidation("selector", s, "duplicate layer filter")
			}
			layer := (*f.String)[1 : len(*f.String)-1]
			sel.Layer = &layer
		case strings.EqualFold(f.Field, "color") && f.Int != nil:
			if sel.Color != nil {
				return nil, errors.NewValidation("selector", s, "duplicate color filter")
			}
			sel.Color = f.Int
		default:
			return nil, errors.NewValidation("selector", s, "unsupported query filter "+strconv.Quote(f.Field))
		}
	}
	return sel, nil
}

// MustParse is Parse for selectors known to be valid.
func MustParse(s string) *Selector {
	sel, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// Match reports whether e satisfies every part of the selector.
func (s *Selector) Match(e dxf.Entity) bool {
	if s.Types != nil && !slices.Contains(s.Types, e.Type()) {
		return false
	}
	p := e.Properties()
	if s.Layer != nil && p.Layer != *s.Layer {
		return false
	}
	if s.Color != nil && p.Color != *s.Color {
		return false
	}
	return true
}

// Filter returns the matching entities in their original order.
func (s *Selector) Filter(entities []dxf.Entity) []dxf.Entity {
	out := []dxf.Entity{}
	for _, e := range entities {
		if s.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// String returns the selector text as given to Parse, trimmed.
func (s *Selector) String() string {
	return s.text
}
