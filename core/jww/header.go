package jww

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/jwwconv/core/errors"
)

// Signature opens every Jw_cad drawing.
const Signature = "JwwData."

// Supported header versions. Jw_cad writes 230 through 700 in practice.
const (
	MinVersion = 200
	MaxVersion = 999
)

const (
	// GroupCount is the number of layer groups in a drawing.
	GroupCount = 16
	// LayersPerGroup is the number of layers in each group.
	LayersPerGroup = 16

	probeSize = len(Signature) + 4

	// versions from 300 carry layer and group names after the
	// print settings block
	namedLayersVersion = 300
	preNameSkip        = (14+5+1+1)*4 + 16 + 8 + 4 + 4 + 8 + 16 + 16
)

// Layer is one of the 256 drawing layers.
type Layer struct {
	State   uint32 `json:"state"`
	Protect uint32 `json:"protect"`
	Name    string `json:"name"`
}

// LayerGroup holds 16 layers and the group's drawing scale.
type LayerGroup struct {
	State      uint32                `json:"state"`
	WriteLayer uint32                `json:"write_layer"`
	Scale      float64               `json:"scale"`
	Protect    uint32                `json:"protect"`
	Name       string                `json:"name"`
	Layers     [LayersPerGroup]Layer `json:"layers"`
}

// Header is the drawing-level metadata. It is not modified after decoding.
type Header struct {
	Version         uint32                 `json:"version"`
	Memo            string                 `json:"memo"`
	PaperSize       uint32                 `json:"paper_size"`
	WriteLayerGroup uint32                 `json:"write_layer_group"`
	LayerGroups     [GroupCount]LayerGroup `json:"layer_groups"`
}

// Units reports the drawing unit. Jw_cad coordinates are millimetres.
func (h *Header) Units() string { return "mm" }

// Scale returns the scale denominator of the active layer group.
func (h *Header) Scale() float64 {
	return h.LayerGroups[h.WriteLayerGroup%GroupCount].Scale
}

// LayerName returns the declared name for a group/layer pair. The second
// result is false when either index is out of range.
func (h *Header) LayerName(group, layer uint16) (string, bool) {
	if int(group) >= GroupCount || int(layer) >= LayersPerGroup {
		return "", false
	}
	name := strings.TrimSpace(h.LayerGroups[group].Layers[layer].Name)
	if name == "" {
		name = DefaultLayerName(int(group), int(layer))
	}
	return name, true
}

// DefaultLayerName is the name Jw_cad shows for an unnamed layer.
func DefaultLayerName(group, layer int) string {
	return fmt.Sprintf("%X-%X", group, layer)
}

// DefaultGroupName is the name Jw_cad shows for an unnamed group.
func DefaultGroupName(group int) string {
	return fmt.Sprintf("Group%X", group)
}

// Probe reports whether data plausibly holds a Jw_cad drawing. It checks
// the signature and decodes the fixed header prefix, so a true result means
// Decode gets past the header. The entity list is not walked.
func Probe(data []byte) bool {
	_, _, err := decodeHeader(data)
	return err == nil
}

func hasSignature(data []byte) bool {
	return len(data) >= probeSize && bytes.HasPrefix(data, []byte(Signature))
}

// DecodeHeader decodes only the header.
func DecodeHeader(data []byte) (*Header, error) {
	h, _, err := decodeHeader(data)
	return h, err
}

func decodeHeader(data []byte) (*Header, *reader, error) {
	if !hasSignature(data) {
		return nil, nil, errors.NewFormat(errors.KindNotThisFormat, -1, "missing "+Signature+" signature")
	}
	r := newReader(data)
	r.pos = len(Signature)

	h := &Header{}
	var err error
	if h.Version, err = r.u32("version"); err != nil {
		return nil, nil, err
	}
	if h.Version < MinVersion || h.Version > MaxVersion {
		return nil, nil, errors.NewFormat(errors.KindUnsupportedVersion, int64(len(Signature)),
			fmt.Sprintf("version %d outside %d..%d", h.Version, MinVersion, MaxVersion))
	}
	if h.Memo, err = r.cstring("memo"); err != nil {
		return nil, nil, err
	}
	if h.PaperSize, err = r.u32("paper size"); err != nil {
		return nil, nil, err
	}
	if h.WriteLayerGroup, err = r.u32("write layer group"); err != nil {
		return nil, nil, err
	}
	for g := range h.LayerGroups {
		if err := decodeLayerGroup(r, &h.LayerGroups[g]); err != nil {
			return nil, nil, err
		}
	}

	// The name block is optional; a copy of the cursor keeps a failed
	// attempt from disturbing the caller.
	names := *r
	if err := decodeLayerNames(&names, h); err != nil {
		applyDefaultNames(h, false)
	} else {
		applyDefaultNames(h, true)
	}
	return h, r, nil
}

func decodeLayerGroup(r *reader, g *LayerGroup) error {
	var err error
	if g.State, err = r.u32("group state"); err != nil {
		return err
	}
	if g.WriteLayer, err = r.u32("group write layer"); err != nil {
		return err
	}
	if g.Scale, err = r.f64("group scale"); err != nil {
		return err
	}
	if g.Protect, err = r.u32("group protect"); err != nil {
		return err
	}
	for l := range g.Layers {
		if g.Layers[l].State, err = r.u32("layer state"); err != nil {
			return err
		}
		if g.Layers[l].Protect, err = r.u32("layer protect"); err != nil {
			return err
		}
	}
	return nil
}

func decodeLayerNames(r *reader, h *Header) error {
	if h.Version < namedLayersVersion {
		return fmt.Errorf("version %d has no layer names", h.Version)
	}
	if err := r.skip(preNameSkip, "print settings"); err != nil {
		return err
	}
	var layerNames [GroupCount][LayersPerGroup]string
	var groupNames [GroupCount]string
	for g := range layerNames {
		for l := range layerNames[g] {
			name, err := r.cstring("layer name")
			if err != nil {
				return err
			}
			layerNames[g][l] = name
		}
	}
	for g := range groupNames {
		name, err := r.cstring("group name")
		if err != nil {
			return err
		}
		groupNames[g] = name
	}
	for g := range h.LayerGroups {
		h.LayerGroups[g].Name = groupNames[g]
		for l := range h.LayerGroups[g].Layers {
			h.LayerGroups[g].Layers[l].Name = layerNames[g][l]
		}
	}
	return nil
}

// applyDefaultNames fills names with Jw_cad's defaults. With blanksOnly
// set, decoded names are kept.
func applyDefaultNames(h *Header, blanksOnly bool) {
	for g := range h.LayerGroups {
		group := &h.LayerGroups[g]
		if !blanksOnly || group.Name == "" {
			group.Name = DefaultGroupName(g)
		}
		for l := range group.Layers {
			if !blanksOnly || group.Layers[l].Name == "" {
				group.Layers[l].Name = DefaultLayerName(g, l)
			}
		}
	}
}
