// Package geom provides the geometric primitives used by plane and object
// extraction: planes in point-normal form, a least-squares plane fit, and a
// 2D convex hull with signed boundary distance.
package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// HorizontalNormalZ is the minimum |normal.z| for a plane to count as horizontal.
	HorizontalNormalZ = 0.99

	// collinearTolerance bounds sin(angle) between the two edges of a sampled
	// triple below which the triple is treated as collinear.
	collinearTolerance = 1e-9
)

// Plane is a plane in point-normal form. Normal has unit length.
type Plane struct {
	Normal r3.Vector `json:"normal"`
	Point  r3.Vector `json:"point"`
}

// NewPlane normalises normal and returns the plane through point. The second
// result is false when normal has zero length.
func NewPlane(normal, point r3.Vector) (Plane, bool) {
	n := normal.Norm()
	if n == 0 || math.IsNaN(n) {
		return Plane{}, false
	}
	return Plane{Normal: normal.Mul(1 / n), Point: point}, true
}

// PlaneFromPoints returns the plane through three points with its normal
// pointing towards +z. The second result is false if the points are
// coincident or collinear.
func PlaneFromPoints(a, b, c r3.Vector) (Plane, bool) {
	if !ValidPointsForPlane(a, b, c) {
		return Plane{}, false
	}
	p, ok := NewPlane(b.Sub(a).Cross(c.Sub(a)), a)
	if !ok {
		return Plane{}, false
	}
	return p.Upward(), true
}

// ValidPointsForPlane reports whether three points span a plane.
func ValidPointsForPlane(a, b, c r3.Vector) bool {
	ab, ac := b.Sub(a), c.Sub(a)
	lab, lac := ab.Norm(), ac.Norm()
	if lab == 0 || lac == 0 {
		return false
	}
	return ab.Cross(ac).Norm() > collinearTolerance*lab*lac
}

// SignedDistance is positive on the side the normal points to.
func (p Plane) SignedDistance(q r3.Vector) float64 {
	return p.Normal.Dot(q.Sub(p.Point))
}

// Distance is the unsigned perpendicular distance from q to the plane.
func (p Plane) Distance(q r3.Vector) float64 {
	return math.Abs(p.SignedDistance(q))
}

// Offset returns d in n·x + d = 0.
func (p Plane) Offset() float64 {
	return -p.Normal.Dot(p.Point)
}

// Upward returns the same plane with the normal flipped, if needed, so that normal.z ≥ 0.
func (p Plane) Upward() Plane {
	if p.Normal.Z < 0 {
		p.Normal = p.Normal.Mul(-1)
	}
	return p
}

// IsHorizontal reports whether |normal.z| ≥ HorizontalNormalZ.
func (p Plane) IsHorizontal() bool {
	return math.Abs(p.Normal.Z) >= HorizontalNormalZ
}

// FitPlane computes the least-squares plane through pts by principal
// component analysis: the normal is the eigenvector of the covariance matrix
// with the smallest eigenvalue and the reference point is the centroid.
// The normal is returned pointing towards +z.
//
// The second result is false for fewer than three points, for point sets
// of rank below two (all coincident or all collinear), or if the
// eigendecomposition fails.
func FitPlane(pts []r3.Vector) (Plane, bool) {
	if len(pts) < 3 {
		return Plane{}, false
	}

	data := mat.NewDense(len(pts), 3, nil)
	for i, p := range pts {
		data.Set(i, 0, p.X)
		data.Set(i, 1, p.Y)
		data.Set(i, 2, p.Z)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	var eigen mat.EigenSym
	if ok := eigen.Factorize(&cov, true); !ok {
		return Plane{}, false
	}
	// Eigenvalues are in ascending order.
	vals := eigen.Values(nil)
	if vals[1] <= rankTolerance(vals[2]) {
		return Plane{}, false
	}

	var vecs mat.Dense
	eigen.VectorsTo(&vecs)
	normal := r3.Vector{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}

	centroid := r3.Vector{
		X: stat.Mean(mat.Col(nil, 0, data), nil),
		Y: stat.Mean(mat.Col(nil, 1, data), nil),
		Z: stat.Mean(mat.Col(nil, 2, data), nil),
	}

	p, ok := NewPlane(normal, centroid)
	if !ok {
		return Plane{}, false
	}
	return p.Upward(), true
}

// rankTolerance is the eigenvalue magnitude treated as zero relative to the largest.
func rankTolerance(largest float64) float64 {
	return math.Max(largest*1e-12, 1e-18)
}

// Centroid returns the arithmetic mean of pts, or the zero vector for an empty slice.
func Centroid(pts []r3.Vector) r3.Vector {
	if len(pts) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, p := range pts {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(pts)))
}
