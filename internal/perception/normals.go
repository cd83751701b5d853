package perception

import (
	"github.com/golang/geo/r3"

	"github.com/banshee-data/tabletop/internal/cloud"
)

// NormalField holds one surface normal per grid cell. A zero vector marks a
// cell whose normal is undefined; every other entry is a unit vector with
// non-negative z.
type NormalField struct {
	Rows    int
	Cols    int
	Normals []r3.Vector
}

// At returns the normal at row/col.
func (f *NormalField) At(row, col int) r3.Vector { return f.Normals[row*f.Cols+col] }

// Defined reports whether row/col has a normal.
func (f *NormalField) Defined(row, col int) bool { return f.At(row, col) != (r3.Vector{}) }

// HorizontalMask selects cells whose normal points up steeply enough that
// the surface is near horizontal: defined and normal.z ≥ minZ.
func (f *NormalField) HorizontalMask(minZ float64) *cloud.Mask {
	m := cloud.NewMask(f.Rows, f.Cols)
	for i, n := range f.Normals {
		if n == (r3.Vector{}) {
			continue
		}
		m.Bits[i] = n.Z >= minZ
	}
	return m
}

// ComputeNormals estimates a normal for every interior cell from its four
// diagonal neighbours: with d1 = topRight − bottomLeft and
// d2 = topLeft − bottomRight the normal is d2 × d1, normalised and flipped
// to point towards +z. Border cells, cells with an invalid diagonal
// neighbour, and cells whose cross product vanishes are left undefined.
// The centre cell's own validity is not consulted.
func ComputeNormals(g *cloud.Grid) *NormalField {
	f := &NormalField{
		Rows:    g.Rows,
		Cols:    g.Cols,
		Normals: make([]r3.Vector, g.Len()),
	}
	for r := 1; r < g.Rows-1; r++ {
		for c := 1; c < g.Cols-1; c++ {
			tl, tr := g.Offset(r-1, c-1), g.Offset(r-1, c+1)
			bl, br := g.Offset(r+1, c-1), g.Offset(r+1, c+1)
			if !g.Valid[tl] || !g.Valid[tr] || !g.Valid[bl] || !g.Valid[br] {
				continue
			}

			d1 := g.Points[tr].Sub(g.Points[bl])
			d2 := g.Points[tl].Sub(g.Points[br])
			n := d2.Cross(d1)
			norm := n.Norm()
			if norm == 0 {
				continue
			}
			n = n.Mul(1 / norm)
			if n.Z < 0 {
				n = n.Mul(-1)
			}
			f.Normals[g.Offset(r, c)] = n
		}
	}
	return f
}
