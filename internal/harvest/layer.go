package harvest

import (
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Layer describes one MapServer layer: which attributes to keep and the
// semantic type every row from it is tagged with.
type Layer struct {
	ID   int      `yaml:"id"`
	Type string   `yaml:"type"`
	Keep []string `yaml:"keep"`
}

// VarmeLayers returns the layer table for the NVE "Varme" MapServer.
// Layer 0 answers every query with HTTP 400 and is deliberately absent.
func VarmeLayers() []Layer {
	return []Layer{
		{ID: 1, Type: "industri", Keep: []string{"OBJECTID", "anlegg", "eier", "kommune"}},
		{ID: 2, Type: "datasenter", Keep: []string{"OBJECTID", "aktor", "dagensInstallerteEffekt_MW", "navn", "sted", "typeSenter"}},
		{ID: 3, Type: "avfallsforbrenning", Keep: []string{"OBJECTID", "navn", "eier", "kapasitet"}},
		{ID: 4, Type: "fjernvarme_konsesjon", Keep: []string{"OBJECTID", "Anlegg", "Kommune", "Selskap", "Summert"}},
		{ID: 5, Type: "fjernvarme_effekt", Keep: []string{"OBJECTID", "Anlegg", "Kommune", "Selskap", "Summert"}},
		{ID: 6, Type: "fjernvarme_produksjon", Keep: []string{"OBJECTID", "Anlegg", "Kommune", "Selskap", "Summert"}},
	}
}

// ValidateLayers checks that every layer has a type label and a keep-set, and
// that no layer id or keep field is repeated. reserved lists field names the
// harvester writes itself and which a keep-set must not claim.
func ValidateLayers(layers []Layer, reserved ...string) error {
	if len(layers) == 0 {
		return eris.New("harvest: no layers configured")
	}
	ids := make(map[int]bool, len(layers))
	for _, l := range layers {
		if l.ID < 0 {
			return eris.Errorf("harvest: layer %d: id must not be negative", l.ID)
		}
		if ids[l.ID] {
			return eris.Errorf("harvest: layer %d configured twice", l.ID)
		}
		ids[l.ID] = true
		if l.Type == "" {
			return eris.Errorf("harvest: layer %d has no type label", l.ID)
		}
		if len(l.Keep) == 0 {
			return eris.Errorf("harvest: layer %d has no keep fields", l.ID)
		}
		seen := make(map[string]bool, len(l.Keep))
		for _, k := range l.Keep {
			if k == "" {
				return eris.Errorf("harvest: layer %d has an empty keep field", l.ID)
			}
			if seen[k] {
				return eris.Errorf("harvest: layer %d keeps %q twice", l.ID, k)
			}
			if slices.Contains(reserved, k) {
				return eris.Errorf("harvest: layer %d keeps reserved field %q", l.ID, k)
			}
			seen[k] = true
		}
	}
	return nil
}

// SelectLayers returns the layers with the given ids, in ascending id order.
// An empty ids list selects every layer. Asking for an id that is not in the
// table is an error.
func SelectLayers(layers []Layer, ids []int) ([]Layer, error) {
	byID := make(map[int]Layer, len(layers))
	for _, l := range layers {
		byID[l.ID] = l
	}

	var out []Layer
	if len(ids) == 0 {
		out = slices.Clone(layers)
	} else {
		for _, id := range ids {
			l, ok := byID[id]
			if !ok {
				return nil, eris.Errorf("harvest: layer %d is not configured", id)
			}
			if !slices.ContainsFunc(out, func(o Layer) bool { return o.ID == id }) {
				out = append(out, l)
			}
		}
	}

	slices.SortFunc(out, func(a, b Layer) int { return a.ID - b.ID })
	return out, nil
}

// LoadLayers reads a layer table from a YAML file of the form
//
//	layers:
//	  - id: 1
//	    type: industri
//	    keep: [OBJECTID, anlegg]
func LoadLayers(path string) ([]Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "harvest: read layers %s", path)
	}

	var wrapper struct {
		Layers []Layer `yaml:"layers"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "harvest: parse layers %s", path)
	}

	if err := ValidateLayers(wrapper.Layers); err != nil {
		return nil, eris.Wrapf(err, "harvest: layers %s", path)
	}
	return wrapper.Layers, nil
}
