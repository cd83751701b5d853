package perception

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/tabletop/internal/cloud"
	"github.com/banshee-data/tabletop/internal/testutil"
)

// planeGrid returns a rows×cols grid on z = z0 + slope*x with unit spacing.
func planeGrid(rows, cols int, z0, slope float64) *cloud.Grid {
	g := cloud.NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y := float64(c), float64(r)
			g.Set(r, c, r3.Vector{X: x, Y: y, Z: z0 + slope*x})
		}
	}
	return g
}

func TestComputeNormals_FlatPatch(t *testing.T) {
	g := planeGrid(6, 7, 1, 0)
	f := ComputeNormals(g)

	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			border := r == 0 || c == 0 || r == g.Rows-1 || c == g.Cols-1
			if border {
				if f.Defined(r, c) {
					t.Errorf("border cell (%d,%d) has normal %v", r, c, f.At(r, c))
				}
				continue
			}
			testutil.AssertVector(t, "normal", f.At(r, c), r3.Vector{Z: 1}, 1e-12)
		}
	}
}

func TestComputeNormals_FlippedUpward(t *testing.T) {
	// Mirror the grid so the raw cross product points down.
	g := cloud.NewGrid(3, 3)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			g.Set(r, c, r3.Vector{X: -float64(c), Y: float64(r), Z: 2})
		}
	}
	n := ComputeNormals(g).At(1, 1)
	testutil.AssertVector(t, "normal", n, r3.Vector{Z: 1}, 1e-12)
}

func TestComputeNormals_Slope(t *testing.T) {
	g := planeGrid(5, 5, 0, 1)
	n := ComputeNormals(g).At(2, 2)

	want := r3.Vector{X: -1, Z: 1}.Normalize()
	testutil.AssertVector(t, "normal", n, want, 1e-12)
	testutil.AssertFloat(t, "norm", n.Norm(), 1, 1e-12)
}

func TestComputeNormals_InvalidDiagonal(t *testing.T) {
	g := planeGrid(5, 5, 1, 0)
	g.Invalidate(1, 1)
	f := ComputeNormals(g)

	// (1,1) is a diagonal neighbour of (2,2) and of (2,0)/(0,2) which are
	// borders anyway.
	if f.Defined(2, 2) {
		t.Errorf("cell with invalid diagonal neighbour has normal %v", f.At(2, 2))
	}
	// The invalid cell itself still gets a normal from its valid diagonals.
	if !f.Defined(1, 1) {
		t.Error("invalid centre cell should still get a normal")
	}
	// Orthogonal neighbours only are fine.
	if !f.Defined(2, 1) {
		t.Error("cell (2,1) has only orthogonal invalid neighbours and should be defined")
	}
}

func TestComputeNormals_DegenerateCross(t *testing.T) {
	g := cloud.NewGrid(3, 3)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			g.Set(r, c, r3.Vector{X: 1, Y: 1, Z: 1})
		}
	}
	if ComputeNormals(g).Defined(1, 1) {
		t.Error("coincident neighbours should leave the normal undefined")
	}
}

func TestComputeNormals_Tiny(t *testing.T) {
	for _, shape := range [][2]int{{0, 0}, {1, 5}, {2, 2}} {
		f := ComputeNormals(planeGrid(shape[0], shape[1], 0, 0))
		for i, n := range f.Normals {
			if n != (r3.Vector{}) {
				t.Errorf("%dx%d: cell %d has normal %v", shape[0], shape[1], i, n)
			}
		}
	}
}

func TestNormalField_HorizontalMask(t *testing.T) {
	f := &NormalField{
		Rows: 1,
		Cols: 4,
		Normals: []r3.Vector{
			{},
			{Z: 1},
			r3.Vector{X: 1, Z: 1}.Normalize(),
			{X: 0.6, Z: 0.8},
		},
	}
	m := f.HorizontalMask(0.8)
	want := []bool{false, true, false, true}
	for i := range want {
		if m.Bits[i] != want[i] {
			t.Errorf("bit %d = %v, want %v (normal %v)", i, m.Bits[i], want[i], f.Normals[i])
		}
	}

	// A threshold of zero still rejects undefined normals.
	if f.HorizontalMask(0).Bits[0] {
		t.Error("undefined normal must never be horizontal")
	}
	if got := f.HorizontalMask(math.Nextafter(1, 2)).Count(); got != 0 {
		t.Errorf("threshold above 1 selected %d cells", got)
	}
}
