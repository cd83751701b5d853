package perception

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tabletop/internal/cloud"
	"github.com/banshee-data/tabletop/internal/geom"
	"github.com/banshee-data/tabletop/internal/testutil"
)

// unitTable is a horizontal segment at z = 0.5 whose hull is the unit square.
func unitTable() PlanarSegment {
	return PlanarSegment{
		Plane: geom.Plane{Normal: r3.Vector{Z: 1}, Point: r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}},
		Hull: geom.ConvexHull([]orb.Point{
			{0, 0}, {1, 0}, {1, 1}, {0, 1},
		}),
	}
}

func rowGrid(pts ...r3.Vector) *cloud.Grid {
	g, err := cloud.FromPoints(1, len(pts), pts)
	if err != nil {
		panic(err)
	}
	return g
}

func TestObjectSegmenter_HeightBand(t *testing.T) {
	seg := unitTable()
	// Dyadic bounds keep the boundary cases exact.
	s := ObjectSegmenter{MinDist: 0.125, MaxDist: 0.25, MinContourDist: 0.02}

	tests := []struct {
		name string
		z    float64
		want bool
	}{
		{"on plane", 0.5, false},
		{"under band", 0.5625, false},
		{"band floor is exclusive", 0.625, false},
		{"just above band floor", 0.63, true},
		{"mid band", 0.6875, true},
		{"band ceiling is exclusive", 0.75, false},
		{"above band", 0.9, false},
		{"below plane", 0.3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := r3.Vector{X: 0.5, Y: 0.5, Z: tt.z}
			assert.Equal(t, tt.want, s.Accepts(seg, p), "signed distance %v", seg.Plane.SignedDistance(p))
		})
	}
}

func TestObjectSegmenter_HullMargin(t *testing.T) {
	seg := unitTable()
	inside := ObjectSegmenter{MinDist: 0.02, MaxDist: 0.25, MinContourDist: 0.02}
	outside := inside
	outside.Outside = true

	tests := []struct {
		name       string
		xy         orb.Point
		wantInside bool
		wantOut    bool
	}{
		{"centre", orb.Point{0.5, 0.5}, true, false},
		{"inside margin", orb.Point{0.01, 0.5}, false, false},
		{"on boundary", orb.Point{0, 0.5}, false, false},
		{"outside margin", orb.Point{-0.01, 0.5}, false, false},
		{"well outside", orb.Point{-0.5, 0.5}, false, true},
		{"beyond corner", orb.Point{1.1, 1.1}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := r3.Vector{X: tt.xy[0], Y: tt.xy[1], Z: 0.6}
			assert.Equal(t, tt.wantInside, inside.Accepts(seg, p), "inside mode")
			assert.Equal(t, tt.wantOut, outside.Accepts(seg, p), "outside mode")
		})
	}

	testutil.AssertFloat(t, "metric", inside.HullMetric(seg.Hull, r3.Vector{X: 0.5, Y: 0.25}), 0.25, 1e-12)
	testutil.AssertFloat(t, "metric", outside.HullMetric(seg.Hull, r3.Vector{X: 0.5, Y: 0.25}), -0.25, 1e-12)
}

func TestExtractObjectPoints_ScansWholeGrid(t *testing.T) {
	g := rowGrid(
		r3.Vector{X: 0.5, Y: 0.5, Z: 0.5},  // inlier
		r3.Vector{X: 0.4, Y: 0.4, Z: 0.6},  // object
		r3.Vector{X: 0.6, Y: 0.6, Z: 0.3},  // below the table
		r3.Vector{X: 2.0, Y: 2.0, Z: 0.6},  // off the table
		r3.Vector{X: 0.6, Y: 0.4, Z: 0.65}, // object
	)
	g.Valid[1] = false // a stale coordinate in an invalid cell is ignored

	seg := unitTable()
	seg.Indices = []cloud.Index{{Row: 0, Col: 0}}
	seg.Points = []r3.Vector{g.At(0, 0)}

	got := ExtractObjectPoints(g, seg, 0.02, 0.25, 0.02)
	require.Len(t, got, 1)
	assert.Equal(t, cloud.Index{Row: 0, Col: 4}, got[0].Index)
	assert.Equal(t, g.At(0, 4), got[0].Point)
}

func TestExtractObjectPoints_TiltedPlaneUsesPerpendicularDistance(t *testing.T) {
	n := r3.Vector{X: 0.1, Z: 1}.Normalize()
	seg := unitTable()
	seg.Plane = geom.Plane{Normal: n, Point: r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}}

	p := seg.Plane.Point.Add(n.Mul(0.1))
	g := rowGrid(p)
	got := ExtractObjectPoints(g, seg, 0.02, 0.25, 0.02)
	require.Len(t, got, 1)
	testutil.AssertFloat(t, "distance", seg.Plane.SignedDistance(got[0].Point), 0.1, 1e-12)
}

func TestAggregateObjects(t *testing.T) {
	candidates := []ObjectPoint{
		{Point: r3.Vector{X: 0, Y: 0, Z: 1.0}, Index: cloud.Index{Row: 0, Col: 0}},
		{Point: r3.Vector{X: 2, Y: 0, Z: 1.2}, Index: cloud.Index{Row: 0, Col: 1}},
		{Point: r3.Vector{X: 5, Y: 5, Z: 0.9}, Index: cloud.Index{Row: 1, Col: 0}},
		{Point: r3.Vector{X: 1, Y: 3, Z: 1.1}, Index: cloud.Index{Row: 1, Col: 1}},
	}
	clusters := [][]int{{0, 1, 3}, {}, {2}}

	objs := AggregateObjects(candidates, clusters)
	require.Len(t, objs, 2)

	first := objs[0]
	assert.Equal(t, []cloud.Index{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 1, Col: 1}}, first.Indices)
	assert.Equal(t, []orb.Point{{0, 0}, {2, 0}, {1, 3}}, first.XY)
	testutil.AssertVector(t, "centroid", first.Centroid, r3.Vector{X: 1, Y: 1, Z: 1.1}, 1e-12)
	testutil.AssertFloat(t, "height", first.Height, 0.2, 1e-12)

	single := objs[1]
	assert.Len(t, single.Points, 1)
	assert.Zero(t, single.Height)
	assert.Equal(t, candidates[2].Point, single.Centroid)
}

func TestAggregateObjects_Empty(t *testing.T) {
	objs := AggregateObjects(nil, nil)
	assert.NotNil(t, objs)
	assert.Empty(t, objs)
}
