// Package report computes conversion health checks, extents and entity
// statistics over built exchange documents.
package report

import (
	"fmt"

	"github.com/FocuswithJustin/jwwconv/core/blocks"
	"github.com/FocuswithJustin/jwwconv/core/dxf"
)

// Issue codes reported by an audit.
const (
	IssueUnresolvedBlocks = "UNRESOLVED_BLOCK_REFERENCES"
	IssueUnsupported      = "UNSUPPORTED_DXF_ENTITIES"
)

// Audit describes what a conversion could not carry over.
type Audit struct {
	// SourcePath is the drawing the audit was computed for.
	SourcePath string `json:"source_path"`

	TotalReferences    int `json:"total_references"`
	ResolvedReferences int `json:"resolved_references"`

	// UnresolvedDefNumbers has one entry per insertion whose block is
	// missing.
	UnresolvedDefNumbers []uint32 `json:"unresolved_def_numbers"`
	UnresolvedCount      int      `json:"unresolved_count"`

	// UnsupportedEntities lists source records with no DXF equivalent.
	UnsupportedEntities []dxf.UnsupportedEntity `json:"unsupported_entities"`
	UnsupportedCount    int                     `json:"unsupported_count"`

	IssueCodes []string `json:"issue_codes"`
	HasIssues  bool     `json:"has_issues"`
	Warnings   []string `json:"warnings"`
}

// NewAudit checks a built document against the validation of its source.
// A nil validation is treated as a drawing without references.
func NewAudit(source string, validation *blocks.ValidationReport, doc *dxf.Document) *Audit {
	a := &Audit{
		SourcePath:           source,
		UnresolvedDefNumbers: []uint32{},
		UnsupportedEntities:  []dxf.UnsupportedEntity{},
		IssueCodes:           []string{},
		Warnings:             []string{},
	}
	if validation != nil {
		a.TotalReferences = validation.TotalReferences
		a.ResolvedReferences = validation.ResolvedReferences
		a.UnresolvedDefNumbers = append(a.UnresolvedDefNumbers, validation.UnresolvedDefNumbers...)
	}
	if doc != nil {
		a.UnsupportedEntities = append(a.UnsupportedEntities, doc.Unsupported...)
	}
	a.UnresolvedCount = len(a.UnresolvedDefNumbers)
	a.UnsupportedCount = len(a.UnsupportedEntities)

	if a.UnresolvedCount > 0 {
		a.Warnings = append(a.Warnings, "unresolved block references detected")
		a.IssueCodes = append(a.IssueCodes, IssueUnresolvedBlocks)
	}
	if a.UnsupportedCount > 0 {
		a.Warnings = append(a.Warnings, "unsupported entities exist for DXF conversion")
		a.IssueCodes = append(a.IssueCodes, IssueUnsupported)
	}
	if doc != nil && len(doc.DepthLimited) > 0 {
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("block nesting limit reached; %d insertions kept as INSERT", len(doc.DepthLimited)))
	}
	a.HasIssues = len(a.IssueCodes) > 0
	return a
}
