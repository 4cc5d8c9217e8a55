// Package jww decodes Jw_cad drawings (.jww).
//
// A drawing is an MFC CArchive stream: a fixed header with 16 layer
// groups of 16 layers each, a list of entity records and a trailing list
// of block definitions. Decode reads the whole stream from memory and
// returns the raw records unchanged; conversion into an exchange format
// lives in other packages.
//
// The header and top-level entity list must decode cleanly. Records of an
// unknown class stop their list and surface as *Unsupported, and the
// block definition list is decoded best-effort. Both cases are reported
// through Drawing.Warnings rather than as errors.
package jww
