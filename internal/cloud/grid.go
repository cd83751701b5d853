// Package cloud holds the organized point cloud types shared by the
// perception pipeline: the row/column grid of 3D points with explicit
// validity bits, boolean masks over that grid, and PCD file I/O.
package cloud

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// ErrShape is returned when a point slice does not match the requested grid dimensions.
var ErrShape = errors.New("point count does not match grid dimensions")

// Index addresses one cell of an organized grid.
type Index struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grid is an organized point cloud: Rows×Cols points stored row-major,
// each with an explicit validity bit. A cell whose Valid bit is false
// carries no measurement regardless of its coordinate.
type Grid struct {
	Rows   int
	Cols   int
	Points []r3.Vector
	Valid  []bool
}

// NewGrid allocates an empty grid with every cell invalid.
func NewGrid(rows, cols int) *Grid {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &Grid{
		Rows:   rows,
		Cols:   cols,
		Points: make([]r3.Vector, rows*cols),
		Valid:  make([]bool, rows*cols),
	}
}

// FromPoints builds a grid in which every supplied point is valid.
func FromPoints(rows, cols int, pts []r3.Vector) (*Grid, error) {
	if rows < 0 || cols < 0 || len(pts) != rows*cols {
		return nil, fmt.Errorf("%w: %dx%d grid, %d points", ErrShape, rows, cols, len(pts))
	}
	g := NewGrid(rows, cols)
	copy(g.Points, pts)
	for i := range g.Valid {
		g.Valid[i] = true
	}
	return g, nil
}

// FromSentinel builds a grid from sensor output that encodes "no measurement"
// in the coordinate itself. Cells equal to sentinel, or with any non-finite
// component, are marked invalid. Passing the origin reproduces the usual
// depth-camera convention, at the cost of treating a real measurement at
// exactly (0,0,0) as missing.
func FromSentinel(rows, cols int, pts []r3.Vector, sentinel r3.Vector) (*Grid, error) {
	g, err := FromPoints(rows, cols, pts)
	if err != nil {
		return nil, err
	}
	for i, p := range g.Points {
		if p == sentinel || !IsFinite(p) {
			g.Valid[i] = false
		}
	}
	return g, nil
}

// IsFinite reports whether every component of p is a finite number.
func IsFinite(p r3.Vector) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}

// Len returns the number of cells in the grid.
func (g *Grid) Len() int { return g.Rows * g.Cols }

// Offset converts a row/column pair to the row-major position used by Points and Valid.
func (g *Grid) Offset(row, col int) int { return row*g.Cols + col }

// IndexOf converts a row-major position back to a cell index.
func (g *Grid) IndexOf(offset int) Index {
	return Index{Row: offset / g.Cols, Col: offset % g.Cols}
}

// InBounds reports whether row/col addresses a cell of the grid.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// At returns the point stored at row/col, valid or not.
func (g *Grid) At(row, col int) r3.Vector { return g.Points[g.Offset(row, col)] }

// IsValid reports whether row/col holds a measurement.
func (g *Grid) IsValid(row, col int) bool { return g.Valid[g.Offset(row, col)] }

// Set stores a measured point and marks the cell valid.
func (g *Grid) Set(row, col int, p r3.Vector) {
	off := g.Offset(row, col)
	g.Points[off] = p
	g.Valid[off] = true
}

// Invalidate clears the cell's validity bit and zeroes its coordinate.
func (g *Grid) Invalidate(row, col int) {
	off := g.Offset(row, col)
	g.Points[off] = r3.Vector{}
	g.Valid[off] = false
}

// ValidCount returns the number of valid cells.
func (g *Grid) ValidCount() int {
	n := 0
	for _, v := range g.Valid {
		if v {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.Rows, g.Cols)
	copy(out.Points, g.Points)
	copy(out.Valid, g.Valid)
	return out
}

// ValidMask returns a mask that is set wherever the grid holds a measurement.
func (g *Grid) ValidMask() *Mask {
	m := NewMask(g.Rows, g.Cols)
	copy(m.Bits, g.Valid)
	return m
}

// RangeMask selects valid cells whose coordinates fall inside the axis-aligned
// box [min, max]. Both bounds are inclusive.
func (g *Grid) RangeMask(min, max r3.Vector) *Mask {
	m := NewMask(g.Rows, g.Cols)
	for i, p := range g.Points {
		if !g.Valid[i] {
			continue
		}
		if p.X < min.X || p.X > max.X ||
			p.Y < min.Y || p.Y > max.Y ||
			p.Z < min.Z || p.Z > max.Z {
			continue
		}
		m.Bits[i] = true
	}
	return m
}
