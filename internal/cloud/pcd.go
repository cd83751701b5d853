package cloud

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/golang/geo/r3"
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"

	"github.com/banshee-data/tabletop/internal/fsutil"
)

// ErrUnorganized is returned when a PCD file has a single row and so carries
// no pixel layout.
var ErrUnorganized = errors.New("point cloud is not organized")

// ReadPCD decodes an organized PCD stream. Cells at the origin or with
// non-finite coordinates are treated as missing measurements.
func ReadPCD(r io.Reader) (*Grid, error) {
	pp, err := pc.Unmarshal(r)
	if err != nil {
		return nil, fmt.Errorf("decode pcd: %w", err)
	}
	if pp.Height <= 1 {
		return nil, fmt.Errorf("%w: width=%d height=%d", ErrUnorganized, pp.Width, pp.Height)
	}
	if pp.Points != pp.Width*pp.Height {
		return nil, fmt.Errorf("%w: header %dx%d, %d points", ErrShape, pp.Width, pp.Height, pp.Points)
	}

	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, fmt.Errorf("pcd xyz fields: %w", err)
	}
	pts := make([]r3.Vector, 0, pp.Points)
	for ; it.IsValid(); it.Incr() {
		v := it.Vec3()
		pts = append(pts, r3.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])})
	}
	return FromSentinel(pp.Height, pp.Width, pts, r3.Vector{})
}

// WritePCD encodes the grid as an organized binary PCD. Invalid cells are written as NaN.
func WritePCD(w io.Writer, g *Grid) error {
	pp := &pc.PointCloud{
		PointCloudHeader: pc.PointCloudHeader{
			Version:   0.7,
			Fields:    []string{"x", "y", "z"},
			Size:      []int{4, 4, 4},
			Type:      []string{"F", "F", "F"},
			Count:     []int{1, 1, 1},
			Width:     g.Cols,
			Height:    g.Rows,
			Viewpoint: []float32{0, 0, 0, 1, 0, 0, 0},
		},
		Points: g.Len(),
		Data:   make([]byte, 4*3*g.Len()),
	}
	it, err := pp.Vec3Iterator()
	if err != nil {
		return fmt.Errorf("pcd xyz fields: %w", err)
	}
	nan := float32(math.NaN())
	for i := 0; it.IsValid(); i++ {
		if g.Valid[i] {
			p := g.Points[i]
			it.SetVec3(mat.Vec3{float32(p.X), float32(p.Y), float32(p.Z)})
		} else {
			it.SetVec3(mat.Vec3{nan, nan, nan})
		}
		it.Incr()
	}
	if err := pc.Marshal(pp, w); err != nil {
		return fmt.Errorf("encode pcd: %w", err)
	}
	return nil
}

// LoadPCD reads an organized PCD file through fsys.
func LoadPCD(fsys fsutil.FileSystem, path string) (*Grid, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	g, err := ReadPCD(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// SavePCD writes the grid to path through fsys.
func SavePCD(fsys fsutil.FileSystem, path string, g *Grid) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WritePCD(f, g); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
