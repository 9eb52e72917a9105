package arcgis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"
)

// QueryResponse is the JSON body returned by a layer query.
type QueryResponse struct {
	Error    *ServiceError `json:"error,omitempty"`
	Features []Feature     `json:"features"`
}

// ServiceError is the error object a MapServer reports inside a 200 response.
type ServiceError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("arcgis: service error %d: %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// Feature is a single record with raw attribute values and optional geometry.
type Feature struct {
	Attributes map[string]json.RawMessage `json:"attributes"`
	Geometry   *Geometry                  `json:"geometry,omitempty"`
}

// Geometry holds either a point (X, Y) or polygon rings. Coordinates that are
// not JSON numbers (the service writes "NaN" for empty points) are left nil.
type Geometry struct {
	X     *float64
	Y     *float64
	Rings [][][]float64
}

// UnmarshalJSON decodes an ArcGIS geometry object leniently.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var raw struct {
		X     json.RawMessage `json:"x"`
		Y     json.RawMessage `json:"y"`
		Rings json.RawMessage `json:"rings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.X = parseCoord(raw.X)
	g.Y = parseCoord(raw.Y)
	g.Rings = nil
	if len(raw.Rings) > 0 {
		var rings [][][]float64
		if err := json.Unmarshal(raw.Rings, &rings); err == nil {
			g.Rings = rings
		}
	}
	return nil
}

func parseCoord(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// Point returns the point geometry, or nil when x or y is missing.
func (g *Geometry) Point() *geom.Point {
	if g == nil || g.X == nil || g.Y == nil {
		return nil
	}
	return geom.NewPointFlat(geom.XY, []float64{*g.X, *g.Y})
}

// Polygon returns the rings as a single XY polygon, or nil when no ring has a
// usable vertex. Ordinates beyond x and y are dropped; so are vertices with
// fewer than two ordinates.
func (g *Geometry) Polygon() *geom.Polygon {
	if g == nil || len(g.Rings) == 0 {
		return nil
	}
	var flat []float64
	var ends []int
	for _, ring := range g.Rings {
		start := len(flat)
		for _, vertex := range ring {
			if len(vertex) < 2 {
				continue
			}
			flat = append(flat, vertex[0], vertex[1])
		}
		if len(flat) > start {
			ends = append(ends, len(flat))
		}
	}
	if len(flat) == 0 {
		return nil
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}
