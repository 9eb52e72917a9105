package harvest

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/facility-registry/internal/arcgis"
)

// CentroidMode selects how a polygon is reduced to a representative point.
type CentroidMode string

const (
	// CentroidMean averages every vertex of every ring, closing vertices
	// included. It ignores area, so it drifts toward densely digitized edges.
	CentroidMean CentroidMode = "mean"
	// CentroidArea is the area-weighted centroid of the polygon.
	CentroidArea CentroidMode = "area"
)

// ParseCentroidMode converts a string into a CentroidMode.
func ParseCentroidMode(s string) (CentroidMode, error) {
	switch CentroidMode(s) {
	case "", CentroidMean:
		return CentroidMean, nil
	case CentroidArea:
		return CentroidArea, nil
	default:
		return "", eris.Errorf("unknown centroid mode: %q (valid: mean, area)", s)
	}
}

// RepresentativePoint derives lat/lon for a feature geometry. Point
// coordinates pass through untouched; polygons are reduced with mode; no
// usable geometry yields nil, nil.
func RepresentativePoint(g *arcgis.Geometry, mode CentroidMode) (lat, lon *float64) {
	if p := g.Point(); p != nil {
		y, x := p.Y(), p.X()
		return &y, &x
	}
	poly := g.Polygon()
	if poly == nil {
		return nil, nil
	}

	c, ok := MeanCentroid(poly)
	if mode == CentroidArea {
		if ac, aok := AreaCentroid(poly); aok {
			c, ok = ac, aok
		}
	}
	if !ok {
		return nil, nil
	}
	y, x := c.Y(), c.X()
	return &y, &x
}

// MeanCentroid returns the arithmetic mean of all vertices of p.
func MeanCentroid(p *geom.Polygon) (geom.Coord, bool) {
	flat := p.FlatCoords()
	stride := p.Stride()
	n := len(flat) / stride
	if n == 0 {
		return nil, false
	}
	var sx, sy float64
	for i := 0; i < len(flat); i += stride {
		sx += flat[i]
		sy += flat[i+1]
	}
	return geom.Coord{sx / float64(n), sy / float64(n)}, true
}

// AreaCentroid returns the area-weighted centroid of p. It reports false
// when the result is not a finite coordinate, e.g. for zero-area rings.
func AreaCentroid(p *geom.Polygon) (geom.Coord, bool) {
	c, err := xy.Centroid(p)
	if err != nil || len(c) < 2 {
		return nil, false
	}
	if math.IsNaN(c.X()) || math.IsNaN(c.Y()) || math.IsInf(c.X(), 0) || math.IsInf(c.Y(), 0) {
		return nil, false
	}
	return c, true
}
