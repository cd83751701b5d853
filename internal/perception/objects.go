package perception

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"

	"github.com/banshee-data/tabletop/internal/cloud"
	"github.com/banshee-data/tabletop/internal/geom"
)

// ObjectPoint is an object candidate: a measured point and its grid cell.
type ObjectPoint struct {
	Point r3.Vector
	Index cloud.Index
}

// DetectedObject aggregates one cluster of object points.
type DetectedObject struct {
	Indices  []cloud.Index
	Points   []r3.Vector
	XY       []orb.Point
	Height   float64   // max z − min z
	Centroid r3.Vector // mean of Points
}

// ObjectSegmenter selects the points resting on a planar segment.
type ObjectSegmenter struct {
	// Height band above the plane, both bounds exclusive.
	MinDist float64
	MaxDist float64

	// MinContourDist is the margin a point's XY projection must keep from
	// the hull boundary, measured inwards by default.
	MinContourDist float64

	// Outside measures the margin outwards, selecting points beyond the
	// segment's footprint instead of over it.
	Outside bool
}

// ExtractObjectPoints selects object candidates over seg's footprint using
// the default inside convention.
func ExtractObjectPoints(g *cloud.Grid, seg PlanarSegment, minDist, maxDist, minContourDist float64) []ObjectPoint {
	s := ObjectSegmenter{MinDist: minDist, MaxDist: maxDist, MinContourDist: minContourDist}
	return s.Extract(g, seg)
}

// HullMetric scores p against the hull: signed distance to the boundary,
// positive inside, with the sign flipped in Outside mode.
func (s ObjectSegmenter) HullMetric(h geom.Hull, p r3.Vector) float64 {
	d := h.SignedDistance(orb.Point{p.X, p.Y})
	if s.Outside {
		return -d
	}
	return d
}

// Accepts reports whether p qualifies as an object point of seg.
func (s ObjectSegmenter) Accepts(seg PlanarSegment, p r3.Vector) bool {
	d := seg.Plane.SignedDistance(p)
	if !(s.MinDist < d && d < s.MaxDist) {
		return false
	}
	return s.HullMetric(seg.Hull, p) > s.MinContourDist
}

// Extract scans every valid cell of the grid, not only the segment's
// inliers, and returns those above seg's plane by more than MinDist and
// less than MaxDist whose hull metric exceeds MinContourDist. Distances are
// signed along the plane's upward normal, so points below the surface never
// qualify. Points come out in grid scan order.
func (s ObjectSegmenter) Extract(g *cloud.Grid, seg PlanarSegment) []ObjectPoint {
	var out []ObjectPoint
	for off, p := range g.Points {
		if !g.Valid[off] || !s.Accepts(seg, p) {
			continue
		}
		out = append(out, ObjectPoint{Point: p, Index: g.IndexOf(off)})
	}
	return out
}

// AggregateObjects turns clusters of candidate positions into DetectedObjects,
// one per cluster, in cluster order. Empty clusters are skipped.
func AggregateObjects(candidates []ObjectPoint, clusters [][]int) []DetectedObject {
	objects := make([]DetectedObject, 0, len(clusters))
	for _, members := range clusters {
		if len(members) == 0 {
			continue
		}
		obj := DetectedObject{
			Indices: make([]cloud.Index, len(members)),
			Points:  make([]r3.Vector, len(members)),
			XY:      make([]orb.Point, len(members)),
		}
		minZ, maxZ := math.Inf(1), math.Inf(-1)
		for i, m := range members {
			c := candidates[m]
			obj.Indices[i] = c.Index
			obj.Points[i] = c.Point
			obj.XY[i] = orb.Point{c.Point.X, c.Point.Y}
			minZ = math.Min(minZ, c.Point.Z)
			maxZ = math.Max(maxZ, c.Point.Z)
		}
		obj.Height = maxZ - minZ
		obj.Centroid = geom.Centroid(obj.Points)
		objects = append(objects, obj)
	}
	return objects
}
