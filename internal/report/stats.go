package report

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/FocuswithJustin/jwwconv/core/dxf"
)

// Counts is a tally keyed by K. It marshals as a JSON object with keys in
// ascending order of K.
type Counts[K cmp.Ordered] map[K]int

// Keys returns the keys in ascending order.
func (c Counts[K]) Keys() []K {
	keys := make([]K, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (c Counts[K]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fmt.Sprint(k))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", c[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Stats is the distribution of entities over type, layer and color.
type Stats struct {
	EntityCount int `json:"entity_count"`
	TypeCount   int `json:"type_count"`
	LayerCount  int `json:"layer_count"`
	ColorCount  int `json:"color_count"`

	ByType  Counts[string] `json:"by_type"`
	ByLayer Counts[string] `json:"by_layer"`
	ByColor Counts[int]    `json:"by_color"`
}

// ComputeStats tallies entities. An empty layer name counts as "0".
func ComputeStats(entities []dxf.Entity) *Stats {
	s := &Stats{
		EntityCount: len(entities),
		ByType:      Counts[string]{},
		ByLayer:     Counts[string]{},
		ByColor:     Counts[int]{},
	}
	for _, e := range entities {
		p := e.Properties()
		s.ByType[e.Type()]++
		layer := p.Layer
		if layer == "" {
			layer = dxf.DefaultLayer
		}
		s.ByLayer[layer]++
		s.ByColor[p.Color]++
	}
	s.TypeCount = len(s.ByType)
	s.LayerCount = len(s.ByLayer)
	s.ColorCount = len(s.ByColor)
	return s
}
