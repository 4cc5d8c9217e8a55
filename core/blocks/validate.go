package blocks

import (
	"fmt"

	"github.com/FocuswithJustin/jwwconv/core/jww"
)

// ValidationReport counts block insertions and the ones whose target is
// missing.
type ValidationReport struct {
	TotalReferences    int `json:"total_references"`
	ResolvedReferences int `json:"resolved_references"`
	// UnresolvedDefNumbers has one entry per failed insertion, in the
	// order encountered. Duplicates are kept.
	UnresolvedDefNumbers []uint32 `json:"unresolved_def_numbers"`
}

// Validate makes one flat pass over the top-level entities and then over
// each block body in definition order. Nested insertions are counted
// where they appear, not once per expansion.
func Validate(entities []jww.Entity, t *Table) ValidationReport {
	r := ValidationReport{UnresolvedDefNumbers: []uint32{}}
	r.count(entities, t)
	for _, d := range t.Defs() {
		if d != nil {
			r.count(d.Entities, t)
		}
	}
	return r
}

func (r *ValidationReport) count(entities []jww.Entity, t *Table) {
	for _, e := range entities {
		ref, ok := e.(*jww.BlockRef)
		if !ok {
			continue
		}
		r.TotalReferences++
		if _, found := t.Lookup(ref.DefNumber); found {
			r.ResolvedReferences++
		} else {
			r.UnresolvedDefNumbers = append(r.UnresolvedDefNumbers, ref.DefNumber)
		}
	}
}

// HasUnresolved reports whether any insertion targets a missing block.
func (r ValidationReport) HasUnresolved() bool {
	return len(r.UnresolvedDefNumbers) > 0
}

// Check verifies that every insertion was counted exactly once.
func (r ValidationReport) Check() error {
	if r.ResolvedReferences+len(r.UnresolvedDefNumbers) != r.TotalReferences {
		return fmt.Errorf("block references: %d resolved + %d unresolved != %d total",
			r.ResolvedReferences, len(r.UnresolvedDefNumbers), r.TotalReferences)
	}
	return nil
}
