package geom

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Hull is a convex polygon in the XY plane. Vertices are stored
// counter-clockwise without repeating the first vertex. Hulls of fewer than
// three points are degenerate: a point, a segment or empty.
type Hull struct {
	Vertices []orb.Point `json:"vertices"`
}

// ConvexHull builds the convex hull of pts using Andrew's monotone chain.
// Collinear boundary points are dropped.
func ConvexHull(pts []orb.Point) Hull {
	sorted := make([]orb.Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})
	sorted = dedupeSorted(sorted)
	if len(sorted) < 3 {
		return Hull{Vertices: sorted}
	}

	n := len(sorted)
	hull := make([]orb.Point, 0, 2*n)

	// Lower chain
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// Upper chain
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// The chain ends on its starting vertex.
	return Hull{Vertices: hull[:len(hull)-1]}
}

// cross is the z-component of (a-o)×(b-o).
func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func dedupeSorted(pts []orb.Point) []orb.Point {
	if len(pts) == 0 {
		return pts
	}
	out := pts[:1]
	for _, p := range pts[1:] {
		if !p.Equal(out[len(out)-1]) {
			out = append(out, p)
		}
	}
	return out
}

// Ring returns the hull as a closed orb.Ring.
func (h Hull) Ring() orb.Ring {
	if len(h.Vertices) == 0 {
		return nil
	}
	r := make(orb.Ring, 0, len(h.Vertices)+1)
	r = append(r, h.Vertices...)
	return append(r, h.Vertices[0])
}

// Area returns the enclosed area, zero for degenerate hulls.
func (h Hull) Area() float64 {
	if len(h.Vertices) < 3 {
		return 0
	}
	return math.Abs(planar.Area(h.Ring()))
}

// Contains reports whether p lies inside or on the hull boundary.
func (h Hull) Contains(p orb.Point) bool {
	if len(h.Vertices) < 3 {
		return false
	}
	return planar.RingContains(h.Ring(), p)
}

// SignedDistance returns the distance from p to the hull boundary: positive
// inside, negative outside, zero on the boundary. Degenerate hulls have no
// interior, so every point scores at or below zero. An empty hull returns
// negative infinity.
func (h Hull) SignedDistance(p orb.Point) float64 {
	switch len(h.Vertices) {
	case 0:
		return math.Inf(-1)
	case 1:
		return -planar.Distance(h.Vertices[0], p)
	case 2:
		return -planar.DistanceFromSegment(h.Vertices[0], h.Vertices[1], p)
	}

	d := math.Inf(1)
	n := len(h.Vertices)
	for i := 0; i < n; i++ {
		a, b := h.Vertices[i], h.Vertices[(i+1)%n]
		d = math.Min(d, planar.DistanceFromSegment(a, b, p))
	}
	if h.Contains(p) {
		return d
	}
	return -d
}
