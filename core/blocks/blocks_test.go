package blocks

import (
	"slices"
	"strings"
	"testing"

	"github.com/FocuswithJustin/jwwconv/core/jww"
)

func ref(n uint32) *jww.BlockRef {
	return &jww.BlockRef{ScaleX: 1, ScaleY: 1, DefNumber: n}
}

func TestNewTable(t *testing.T) {
	defs := []*jww.BlockDef{
		{Number: 3, Name: "A"},
		{Number: 7, Name: "  "},
		{Number: 3, Name: "A2"},
	}
	table, warnings := NewTable(defs)

	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "duplicate block number 3") {
		t.Errorf("warnings = %v", warnings)
	}
	if d, ok := table.Lookup(3); !ok || d.Name != "A" {
		t.Errorf("Lookup(3) = %v, %v; first definition should win", d, ok)
	}
	if _, ok := table.Lookup(10); ok {
		t.Error("Lookup(10) should miss")
	}
	if len(table.Defs()) != 3 {
		t.Errorf("Defs() = %d, want all 3", len(table.Defs()))
	}

	names := map[uint32]string{3: "A", 7: "BLOCK_7", 10: "BLOCK_10"}
	for n, want := range names {
		if got := table.Name(n); got != want {
			t.Errorf("Name(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestNilTable(t *testing.T) {
	var table *Table
	if _, ok := table.Lookup(1); ok {
		t.Error("nil table should not resolve")
	}
	if table.Name(4) != "BLOCK_4" {
		t.Errorf("Name() = %q", table.Name(4))
	}
	report := Validate([]jww.Entity{ref(1)}, table)
	if report.TotalReferences != 1 || report.ResolvedReferences != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name           string
		entities       []jww.Entity
		defs           []*jww.BlockDef
		wantTotal      int
		wantResolved   int
		wantUnresolved []uint32
	}{
		{
			name:           "no references",
			entities:       []jww.Entity{&jww.Line{}},
			wantUnresolved: []uint32{},
		},
		{
			name:           "single resolved",
			entities:       []jww.Entity{ref(1)},
			defs:           []*jww.BlockDef{{Number: 1, Name: "BLK"}},
			wantTotal:      1,
			wantResolved:   1,
			wantUnresolved: []uint32{},
		},
		{
			name:           "missing block",
			entities:       []jww.Entity{ref(99)},
			wantTotal:      1,
			wantUnresolved: []uint32{99},
		},
		{
			name:     "per occurrence in first-seen order",
			entities: []jww.Entity{ref(9), ref(1), ref(5), ref(9)},
			defs: []*jww.BlockDef{
				{Number: 1, Entities: []jww.Entity{ref(5), ref(1)}},
			},
			wantTotal:      6,
			wantResolved:   2,
			wantUnresolved: []uint32{9, 5, 9, 5},
		},
		{
			name:     "nested bodies counted once each",
			entities: []jww.Entity{ref(1), ref(1)},
			defs: []*jww.BlockDef{
				{Number: 1, Entities: []jww.Entity{ref(2)}},
				{Number: 2, Entities: []jww.Entity{&jww.Line{}}},
			},
			wantTotal:      3,
			wantResolved:   3,
			wantUnresolved: []uint32{},
		},
		{
			name:     "self reference",
			entities: []jww.Entity{ref(4)},
			defs: []*jww.BlockDef{
				{Number: 4, Entities: []jww.Entity{ref(4)}},
			},
			wantTotal:      2,
			wantResolved:   2,
			wantUnresolved: []uint32{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, _ := NewTable(tt.defs)
			r := Validate(tt.entities, table)
			if r.TotalReferences != tt.wantTotal || r.ResolvedReferences != tt.wantResolved {
				t.Errorf("total=%d resolved=%d, want %d %d", r.TotalReferences, r.ResolvedReferences, tt.wantTotal, tt.wantResolved)
			}
			if !slices.Equal(r.UnresolvedDefNumbers, tt.wantUnresolved) {
				t.Errorf("unresolved = %v, want %v", r.UnresolvedDefNumbers, tt.wantUnresolved)
			}
			if r.HasUnresolved() != (len(tt.wantUnresolved) > 0) {
				t.Errorf("HasUnresolved() = %v", r.HasUnresolved())
			}
			if err := r.Check(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	bad := ValidationReport{TotalReferences: 2, ResolvedReferences: 2, UnresolvedDefNumbers: []uint32{1}}
	if bad.Check() == nil {
		t.Error("Check() should reject an inconsistent report")
	}
}
