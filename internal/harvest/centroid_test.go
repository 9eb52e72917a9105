package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/facility-registry/internal/arcgis"
)

func ptr(v float64) *float64 { return &v }

func TestParseCentroidMode(t *testing.T) {
	m, err := ParseCentroidMode("")
	require.NoError(t, err)
	assert.Equal(t, CentroidMean, m)

	m, err = ParseCentroidMode("area")
	require.NoError(t, err)
	assert.Equal(t, CentroidArea, m)

	_, err = ParseCentroidMode("median")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown centroid mode")
}

func TestRepresentativePoint_PointPassesThrough(t *testing.T) {
	g := &arcgis.Geometry{X: ptr(5.3221957), Y: ptr(60.3912628)}

	for _, mode := range []CentroidMode{CentroidMean, CentroidArea} {
		lat, lon := RepresentativePoint(g, mode)
		require.NotNil(t, lat)
		require.NotNil(t, lon)
		assert.Equal(t, 60.3912628, *lat)
		assert.Equal(t, 5.3221957, *lon)
	}
}

func TestRepresentativePoint_PointWinsOverRings(t *testing.T) {
	g := &arcgis.Geometry{X: ptr(1), Y: ptr(2), Rings: [][][]float64{{{10, 10}, {20, 20}}}}
	lat, lon := RepresentativePoint(g, CentroidMean)
	assert.Equal(t, 2.0, *lat)
	assert.Equal(t, 1.0, *lon)
}

func TestRepresentativePoint_MeanOverAllRings(t *testing.T) {
	g := &arcgis.Geometry{Rings: [][][]float64{
		{{0, 0, 5}, {6, 0, 5}, {6, 3, 5}, {0, 0, 5}},
		{{10, 10}, {12, 10}, {10, 10}},
	}}
	// 7 vertices: x sum 44, y sum 33
	lat, lon := RepresentativePoint(g, CentroidMean)
	require.NotNil(t, lat)
	assert.InDelta(t, 33.0/7, *lat, 1e-12)
	assert.InDelta(t, 44.0/7, *lon, 1e-12)
}

func TestRepresentativePoint_Empty(t *testing.T) {
	cases := map[string]*arcgis.Geometry{
		"nil":         nil,
		"empty":       {},
		"empty rings": {Rings: [][][]float64{{}}},
		"half point":  {X: ptr(1)},
	}
	for name, g := range cases {
		t.Run(name, func(t *testing.T) {
			lat, lon := RepresentativePoint(g, CentroidMean)
			assert.Nil(t, lat)
			assert.Nil(t, lon)
		})
	}
}

func TestMeanCentroid_CountsClosingVertex(t *testing.T) {
	square := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 4, 0, 4, 4, 0, 4, 0, 0}, []int{10})
	c, ok := MeanCentroid(square)
	require.True(t, ok)
	assert.InDelta(t, 1.6, c.X(), 1e-12)
	assert.InDelta(t, 1.6, c.Y(), 1e-12)
}

func TestAreaCentroid_Square(t *testing.T) {
	square := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 4, 0, 4, 4, 0, 4, 0, 0}, []int{10})
	c, ok := AreaCentroid(square)
	require.True(t, ok)
	assert.InDelta(t, 2.0, c.X(), 1e-9)
	assert.InDelta(t, 2.0, c.Y(), 1e-9)
}

func TestRepresentativePoint_AreaMode(t *testing.T) {
	// Extra vertices along the bottom edge pull the mean down but not the
	// area-weighted centroid.
	g := &arcgis.Geometry{Rings: [][][]float64{
		{{0, 0}, {0, 4}, {4, 4}, {4, 0}, {3, 0}, {2, 0}, {1, 0}, {0, 0}},
	}}

	meanLat, _ := RepresentativePoint(g, CentroidMean)
	areaLat, areaLon := RepresentativePoint(g, CentroidArea)
	require.NotNil(t, areaLat)
	assert.InDelta(t, 2.0, *areaLat, 1e-9)
	assert.InDelta(t, 2.0, *areaLon, 1e-9)
	assert.Less(t, *meanLat, 2.0)
}
