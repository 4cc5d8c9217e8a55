package dxf

// Layer is a LAYER table entry.
type Layer struct {
	Name     string `json:"name"`
	Color    int    `json:"color"`
	LineType string `json:"line_type"`
	Frozen   bool   `json:"frozen"`
	Locked   bool   `json:"locked"`
}

// Block is a block definition kept for INSERT entities.
type Block struct {
	Name     string   `json:"name"`
	BaseX    float64  `json:"base_x"`
	BaseY    float64  `json:"base_y"`
	Entities []Entity `json:"entities"`
}

// UnsupportedEntity is a source record with no DXF equivalent.
type UnsupportedEntity struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// Document is a complete exchange document.
type Document struct {
	Layers      []Layer             `json:"layers"`
	Blocks      []Block             `json:"blocks"`
	Entities    []Entity            `json:"entities"`
	Unsupported []UnsupportedEntity `json:"unsupported_entities"`
	// DepthLimited lists block numbers of insertions kept as INSERT
	// because the nesting bound was reached. Empty unless exploded.
	DepthLimited []uint32 `json:"depth_limited,omitempty"`
}

// UnsupportedTypes returns the type tag of every unsupported record.
func (d *Document) UnsupportedTypes() []string {
	out := make([]string, len(d.Unsupported))
	for i, u := range d.Unsupported {
		out[i] = u.Type
	}
	return out
}

// Count returns the number of entities of type typ, counting top-level
// entities only.
func (d *Document) Count(typ string) int {
	n := 0
	for _, e := range d.Entities {
		if e.Type() == typ {
			n++
		}
	}
	return n
}
