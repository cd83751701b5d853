// Package spatial provides a k-d tree over 3D points and the single-link
// distance clustering built on it.
package spatial

import (
	"sort"

	"github.com/golang/geo/r3"
)

// DefaultLeafSize is the bucket size below which the tree stops splitting.
const DefaultLeafSize = 16

// KDTree is a static k-d tree over a point slice. Nodes live in one flat
// slice and reference each other by position; leaves hold a range of the
// permutation slice rather than individual points.
type KDTree struct {
	points   []r3.Vector
	perm     []int
	nodes    []kdNode
	leafSize int
}

type kdNode struct {
	start, end  int // range into perm, end exclusive
	axis        int
	split       float64
	left, right int32 // -1 for leaves
}

// NewKDTree indexes points. The slice is retained, not copied, and must not
// be modified while the tree is in use.
func NewKDTree(points []r3.Vector) *KDTree {
	return NewKDTreeWithLeafSize(points, DefaultLeafSize)
}

// NewKDTreeWithLeafSize is NewKDTree with an explicit leaf bucket size.
func NewKDTreeWithLeafSize(points []r3.Vector, leafSize int) *KDTree {
	if leafSize < 1 {
		leafSize = 1
	}
	t := &KDTree{
		points:   points,
		perm:     make([]int, len(points)),
		nodes:    make([]kdNode, 0, 2*len(points)/leafSize+1),
		leafSize: leafSize,
	}
	for i := range t.perm {
		t.perm[i] = i
	}
	if len(points) > 0 {
		t.build(0, len(points))
	}
	return t
}

// Len returns the number of indexed points.
func (t *KDTree) Len() int { return len(t.points) }

func (t *KDTree) build(start, end int) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, kdNode{start: start, end: end, left: -1, right: -1})
	if end-start <= t.leafSize {
		return idx
	}

	axis := t.widestAxis(start, end)
	ids := t.perm[start:end]
	sort.Slice(ids, func(i, j int) bool {
		return coord(t.points[ids[i]], axis) < coord(t.points[ids[j]], axis)
	})
	mid := start + (end-start)/2
	split := coord(t.points[t.perm[mid]], axis)

	left := t.build(start, mid)
	right := t.build(mid, end)
	// append may have moved the backing array.
	n := &t.nodes[idx]
	n.axis = axis
	n.split = split
	n.left = left
	n.right = right
	return idx
}

func (t *KDTree) widestAxis(start, end int) int {
	lo := t.points[t.perm[start]]
	hi := lo
	for _, id := range t.perm[start+1 : end] {
		p := t.points[id]
		lo = r3.Vector{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = r3.Vector{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	ext := hi.Sub(lo)
	switch {
	case ext.X >= ext.Y && ext.X >= ext.Z:
		return 0
	case ext.Y >= ext.Z:
		return 1
	default:
		return 2
	}
}

func coord(p r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// RadiusSearch returns the indices of points strictly closer than radius to q.
//
// At most limit indices are returned when limit > 0; which neighbours are
// kept once the limit is reached depends on tree layout, not distance.
// Points for which skip returns true are ignored and do not count towards
// the limit. skip may be nil.
func (t *KDTree) RadiusSearch(q r3.Vector, radius float64, limit int, skip func(int) bool) []int {
	if len(t.nodes) == 0 || radius <= 0 {
		return nil
	}
	r2 := radius * radius
	var out []int

	stack := []int32{0}
	for len(stack) > 0 {
		n := t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if n.left < 0 {
			for _, id := range t.perm[n.start:n.end] {
				if skip != nil && skip(id) {
					continue
				}
				d := t.points[id].Sub(q)
				if d.Dot(d) < r2 {
					out = append(out, id)
					if limit > 0 && len(out) >= limit {
						return out
					}
				}
			}
			continue
		}

		c := coord(q, n.axis)
		if c+radius >= n.split {
			stack = append(stack, n.right)
		}
		if c-radius <= n.split {
			stack = append(stack, n.left)
		}
	}
	return out
}
