// Package blocks indexes block definitions and checks insertions against
// them.
package blocks

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/jwwconv/core/jww"
)

// Table maps block numbers to definitions. It is read-only after NewTable.
type Table struct {
	defs  map[uint32]*jww.BlockDef
	order []*jww.BlockDef
}

// NewTable indexes defs by number. On duplicate numbers the first
// definition wins; each later one produces a warning and is dropped from
// the index but kept in Defs for validation.
func NewTable(defs []*jww.BlockDef) (*Table, []string) {
	t := &Table{defs: make(map[uint32]*jww.BlockDef, len(defs)), order: defs}
	var warnings []string
	for _, d := range defs {
		if d == nil {
			continue
		}
		if first, dup := t.defs[d.Number]; dup {
			warnings = append(warnings, fmt.Sprintf("duplicate block number %d: keeping %q, ignoring %q", d.Number, first.Name, d.Name))
			continue
		}
		t.defs[d.Number] = d
	}
	return t, warnings
}

// Lookup returns the definition for number.
func (t *Table) Lookup(number uint32) (*jww.BlockDef, bool) {
	if t == nil {
		return nil, false
	}
	d, ok := t.defs[number]
	return d, ok
}

// Name returns the definition name, or BLOCK_<n> when it is blank or the
// number is unknown.
func (t *Table) Name(number uint32) string {
	if d, ok := t.Lookup(number); ok {
		if name := strings.TrimSpace(d.Name); name != "" {
			return name
		}
	}
	return FallbackName(number)
}

// FallbackName is the name given to unnamed or missing blocks.
func FallbackName(number uint32) string {
	return fmt.Sprintf("BLOCK_%d", number)
}

// Defs returns every definition in source order, duplicates included.
func (t *Table) Defs() []*jww.BlockDef {
	if t == nil {
		return nil
	}
	return t.order
}

// Len is the number of distinct block numbers.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.defs)
}
