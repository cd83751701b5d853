package perception

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"

	"github.com/banshee-data/tabletop/internal/cloud"
	"github.com/banshee-data/tabletop/internal/geom"
	"github.com/banshee-data/tabletop/internal/spatial"
)

// PlanarSegment is one detected horizontal surface: its refined plane, the
// inlier points with their grid cells, and the convex hull of the inliers
// projected onto XY.
type PlanarSegment struct {
	Plane   geom.Plane
	Points  []r3.Vector
	Indices []cloud.Index
	Hull    geom.Hull
}

// InlierCount returns the number of points supporting the segment.
func (s PlanarSegment) InlierCount() int { return len(s.Points) }

// PlaneStats summarises one detection run.
type PlaneStats struct {
	Candidates int // cells in the candidate mask
	Iterations int // RANSAC iterations consumed
	Degenerate int // iterations abandoned on a degenerate sample
	Tilted     int // iterations abandoned on a non-horizontal candidate
	TooSmall   int // iterations abandoned for lack of inliers
	Remaining  int // pool size when the loop ended
}

// PlaneDetector extracts near-horizontal planes by RANSAC.
type PlaneDetector struct {
	MaxDist       float64 // inlier distance, exclusive
	MaxIterations int
	MinInliers    int

	// PreferLargestComponent keeps only the largest ComponentDistance
	// cluster of each candidate plane and returns the rest to the pool.
	PreferLargestComponent bool
	ComponentDistance      float64

	// Rand drives sampling. A nil Rand uses a source seeded with DefaultSeed.
	Rand *rand.Rand
}

// ExtractHorizontalPlanes runs a PlaneDetector with default sampling and
// without the largest-component refinement.
func ExtractHorizontalPlanes(g *cloud.Grid, candidates *cloud.Mask, maxDist float64, maxIterations, minInliers int) []PlanarSegment {
	d := PlaneDetector{MaxDist: maxDist, MaxIterations: maxIterations, MinInliers: minInliers}
	segments, _ := d.Extract(g, candidates)
	return segments
}

// Extract finds horizontal planar segments among the valid grid cells
// selected by candidates. Segments are returned in discovery order, and
// each cell belongs to at most one segment.
//
// Each iteration samples three distinct pool cells and abandons the attempt
// unless they define a horizontal plane that keeps at least MinInliers
// inliers both before and after PCA refinement. Abandoned iterations still
// count against MaxIterations.
func (d PlaneDetector) Extract(g *cloud.Grid, candidates *cloud.Mask) ([]PlanarSegment, PlaneStats) {
	rng := d.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(DefaultSeed))
	}

	var pool []int
	if candidates != nil && candidates.Rows == g.Rows && candidates.Cols == g.Cols {
		for _, off := range candidates.Offsets() {
			if g.Valid[off] {
				pool = append(pool, off)
			}
		}
	}
	stats := PlaneStats{Candidates: len(pool)}
	var segments []PlanarSegment
	trace := traceEnabled()

	for stats.Iterations < d.MaxIterations && len(pool) > d.MinInliers && len(pool) >= 3 {
		stats.Iterations++

		i, j, k := sampleThree(rng, len(pool))
		candidate, ok := geom.PlaneFromPoints(g.Points[pool[i]], g.Points[pool[j]], g.Points[pool[k]])
		if !ok {
			stats.Degenerate++
			continue
		}
		if !candidate.IsHorizontal() {
			stats.Tilted++
			continue
		}

		var inlierPts []r3.Vector
		for _, off := range pool {
			if candidate.Distance(g.Points[off]) < d.MaxDist {
				inlierPts = append(inlierPts, g.Points[off])
			}
		}
		if len(inlierPts) < d.MinInliers {
			stats.TooSmall++
			continue
		}

		refined, ok := geom.FitPlane(inlierPts)
		if !ok {
			stats.Degenerate++
			continue
		}

		members, rest := partition(g, pool, refined, d.MaxDist)
		if len(members) < d.MinInliers || len(members) < 3 {
			stats.TooSmall++
			continue
		}

		if d.PreferLargestComponent {
			var back []int
			members, back = d.largestComponent(g, members)
			if len(members) < d.MinInliers {
				if trace {
					Tracef("iter %d: largest component %d < %d, returning %d points", stats.Iterations, len(members), d.MinInliers, len(members)+len(back))
				}
				stats.TooSmall++
				continue
			}
			rest = append(rest, back...)
		}

		seg, ok := buildSegment(g, members)
		if !ok {
			stats.Tilted++
			continue
		}
		pool = rest
		segments = append(segments, seg)
		if trace {
			Tracef("iter %d: plane %d normal=%v inliers=%d pool=%d", stats.Iterations, len(segments), seg.Plane.Normal, len(members), len(pool))
		}
	}

	stats.Remaining = len(pool)
	return segments, stats
}

// sampleThree draws three distinct positions in [0, n). n must be at least 3.
func sampleThree(rng *rand.Rand, n int) (int, int, int) {
	i := rng.Intn(n)
	j := rng.Intn(n - 1)
	if j >= i {
		j++
	}
	k := rng.Intn(n - 2)
	lo, hi := min(i, j), max(i, j)
	if k >= lo {
		k++
	}
	if k >= hi {
		k++
	}
	return i, j, k
}

// partition splits pool into cells within maxDist of plane and the rest,
// preserving order.
func partition(g *cloud.Grid, pool []int, plane geom.Plane, maxDist float64) (in, out []int) {
	for _, off := range pool {
		if plane.Distance(g.Points[off]) < maxDist {
			in = append(in, off)
		} else {
			out = append(out, off)
		}
	}
	return in, out
}

// largestComponent clusters the tentative inliers and splits them into the
// largest cluster (first found on ties) and everything else.
func (d PlaneDetector) largestComponent(g *cloud.Grid, members []int) (keep, back []int) {
	pts := make([]r3.Vector, len(members))
	for i, off := range members {
		pts[i] = g.Points[off]
	}
	clusters := spatial.ClusterByDistance(pts, d.ComponentDistance)

	best := 0
	for i, c := range clusters {
		if len(c) > len(clusters[best]) {
			best = i
		}
	}
	for i, c := range clusters {
		for _, m := range c {
			if i == best {
				keep = append(keep, members[m])
			} else {
				back = append(back, members[m])
			}
		}
	}
	return keep, back
}

// buildSegment re-fits the plane over the final inliers and computes the XY hull.
// It fails when the refit is degenerate or no longer horizontal.
func buildSegment(g *cloud.Grid, members []int) (PlanarSegment, bool) {
	seg := PlanarSegment{
		Points:  make([]r3.Vector, len(members)),
		Indices: make([]cloud.Index, len(members)),
	}
	xy := make([]orb.Point, len(members))
	for i, off := range members {
		p := g.Points[off]
		seg.Points[i] = p
		seg.Indices[i] = g.IndexOf(off)
		xy[i] = orb.Point{p.X, p.Y}
	}

	plane, ok := geom.FitPlane(seg.Points)
	if !ok || !plane.IsHorizontal() {
		return PlanarSegment{}, false
	}
	seg.Plane = plane
	seg.Hull = geom.ConvexHull(xy)
	return seg, true
}
