package spatial

import (
	"github.com/golang/geo/r3"

	"github.com/banshee-data/tabletop/internal/cloud"
)

// MaxNeighbours caps the number of neighbours a single radius query returns
// during clustering.
const MaxNeighbours = 64

// Clusterer performs single-link clustering: two points share a cluster when
// a chain of hops connects them, each hop strictly shorter than Threshold.
type Clusterer struct {
	Threshold float64
	// MaxNeighbours caps each radius query; zero or less means no cap.
	MaxNeighbours int
}

// ClusterByDistance partitions points into connected clusters under threshold
// with the default per-query neighbour cap. Each cluster lists input indices;
// clusters appear in order of their first member in the input, and each
// cluster's members in breadth-first discovery order.
func ClusterByDistance(points []r3.Vector, threshold float64) [][]int {
	return Clusterer{Threshold: threshold, MaxNeighbours: MaxNeighbours}.Cluster(points)
}

// Cluster runs a breadth-first flood over the k-d tree.
//
// Queries skip already-labelled points, so a query that fills the neighbour
// cap has consumed only new points. Such a point is queued again and
// re-queried until its neighbourhood is exhausted. The result is therefore
// the exact set of connected components whatever the cap or input order.
func (c Clusterer) Cluster(points []r3.Vector) [][]int {
	if len(points) == 0 {
		return [][]int{}
	}

	tree := NewKDTree(points)
	labels := make([]int, len(points)) // 0 = unlabelled
	unlabelled := func(id int) bool { return labels[id] == 0 }
	labelled := func(id int) bool { return !unlabelled(id) }

	var clusters [][]int
	queue := make([]int, 0, 64)
	label := 0
	for p := range points {
		if labels[p] != 0 {
			continue
		}
		label++
		labels[p] = label
		members := []int{p}

		queue = append(queue[:0], p)
		for head := 0; head < len(queue); head++ {
			cur := queue[head]
			found := tree.RadiusSearch(points[cur], c.Threshold, c.MaxNeighbours, labelled)
			for _, id := range found {
				labels[id] = label
				members = append(members, id)
				queue = append(queue, id)
			}
			if c.MaxNeighbours > 0 && len(found) >= c.MaxNeighbours {
				queue = append(queue, cur)
			}
		}
		clusters = append(clusters, members)
	}
	return clusters
}

// ClusterMask clusters the valid grid cells selected by mask and returns one
// group of cell indices per cluster.
func ClusterMask(g *cloud.Grid, mask *cloud.Mask, threshold float64) [][]cloud.Index {
	var (
		pts []r3.Vector
		ids []cloud.Index
	)
	for _, off := range mask.Offsets() {
		if !g.Valid[off] {
			continue
		}
		pts = append(pts, g.Points[off])
		ids = append(ids, g.IndexOf(off))
	}

	groups := ClusterByDistance(pts, threshold)
	out := make([][]cloud.Index, len(groups))
	for i, members := range groups {
		out[i] = make([]cloud.Index, len(members))
		for j, m := range members {
			out[i][j] = ids[m]
		}
	}
	return out
}
