// Package scene renders synthetic organized point clouds of tabletop
// scenes as seen by an ideal downward-looking sensor: each pixel samples
// the highest surface above its XY position.
package scene

import (
	"math/rand"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/tabletop/internal/cloud"
)

// Rect is an axis-aligned XY region, bounds inclusive.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether (x, y) lies in the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// Box is an object whose top surface ramps linearly along X from Bottom at
// MinX to Top at MaxX. Bottom == Top gives a flat-topped box.
type Box struct {
	Rect
	Bottom, Top float64
}

func (b Box) heightAt(x float64) float64 {
	if b.MaxX == b.MinX {
		return b.Top
	}
	return b.Bottom + (b.Top-b.Bottom)*(x-b.MinX)/(b.MaxX-b.MinX)
}

// Builder lays out a scene on a Rows×Cols raster. Pixel (r, c) samples
// X = OriginX + c*Spacing, Y = OriginY + r*Spacing.
type Builder struct {
	Rows, Cols       int
	OriginX, OriginY float64
	Spacing          float64

	// Noise adds uniform z jitter in [-Noise/2, Noise/2] drawn from Seed.
	Noise float64
	Seed  int64

	floor  *float64
	tables []Box
	boxes  []Box
	holes  []Rect
}

// NewBuilder returns a builder centred on the origin.
func NewBuilder(rows, cols int, spacing float64) *Builder {
	return &Builder{
		Rows:    rows,
		Cols:    cols,
		Spacing: spacing,
		OriginX: -float64(cols-1) * spacing / 2,
		OriginY: -float64(rows-1) * spacing / 2,
	}
}

// Floor adds an infinite horizontal floor at z.
func (b *Builder) Floor(z float64) *Builder {
	b.floor = &z
	return b
}

// Table adds a flat horizontal surface at height z.
func (b *Builder) Table(r Rect, z float64) *Builder {
	b.tables = append(b.tables, Box{Rect: r, Bottom: z, Top: z})
	return b
}

// Object adds a box; see Box for the surface shape.
func (b *Builder) Object(box Box) *Builder {
	b.boxes = append(b.boxes, box)
	return b
}

// Hole marks a region as unmeasured regardless of what lies there.
func (b *Builder) Hole(r Rect) *Builder {
	b.holes = append(b.holes, r)
	return b
}

// XY returns the sample position of pixel (row, col).
func (b *Builder) XY(row, col int) (float64, float64) {
	return b.OriginX + float64(col)*b.Spacing, b.OriginY + float64(row)*b.Spacing
}

// Truth records which pixels each scene element ended up owning.
type Truth struct {
	Tables  [][]cloud.Index
	Objects [][]cloud.Index
}

// ObjectPoints returns the rendered points of object i.
func (s *Scene) ObjectPoints(i int) []r3.Vector {
	idx := s.Truth.Objects[i]
	pts := make([]r3.Vector, len(idx))
	for j, id := range idx {
		pts[j] = s.Grid.At(id.Row, id.Col)
	}
	return pts
}

// Scene is a rendered grid with its ground truth.
type Scene struct {
	Grid  *cloud.Grid
	Truth Truth
}

// Build renders the scene.
func (b *Builder) Build() *Scene {
	g := cloud.NewGrid(b.Rows, b.Cols)
	truth := Truth{
		Tables:  make([][]cloud.Index, len(b.tables)),
		Objects: make([][]cloud.Index, len(b.boxes)),
	}
	var rng *rand.Rand
	if b.Noise > 0 {
		rng = rand.New(rand.NewSource(b.Seed))
	}

	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			x, y := b.XY(r, c)
			if b.inHole(x, y) {
				continue
			}

			z, owner, isObject, ok := b.surfaceAt(x, y)
			if !ok {
				continue
			}
			if rng != nil {
				z += (rng.Float64() - 0.5) * b.Noise
			}
			g.Set(r, c, r3.Vector{X: x, Y: y, Z: z})

			idx := cloud.Index{Row: r, Col: c}
			switch {
			case owner < 0:
			case isObject:
				truth.Objects[owner] = append(truth.Objects[owner], idx)
			default:
				truth.Tables[owner] = append(truth.Tables[owner], idx)
			}
		}
	}
	return &Scene{Grid: g, Truth: truth}
}

func (b *Builder) inHole(x, y float64) bool {
	for _, h := range b.holes {
		if h.Contains(x, y) {
			return true
		}
	}
	return false
}

// surfaceAt returns the highest surface over (x, y). owner is -1 for the
// floor, otherwise the table or object index as flagged by isObject.
func (b *Builder) surfaceAt(x, y float64) (z float64, owner int, isObject, ok bool) {
	owner = -1
	if b.floor != nil {
		z, ok = *b.floor, true
	}
	for i, t := range b.tables {
		if t.Contains(x, y) && (!ok || t.Top > z) {
			z, owner, isObject, ok = t.Top, i, false, true
		}
	}
	for i, o := range b.boxes {
		if !o.Contains(x, y) {
			continue
		}
		if h := o.heightAt(x); !ok || h > z {
			z, owner, isObject, ok = h, i, true, true
		}
	}
	return z, owner, isObject, ok
}

// Tabletop returns the standard test scene: a 1.0 × 0.8 m table at 0.75 m
// over a floor, on a 120×120 raster at 1 cm spacing, with the given objects.
func Tabletop(objects ...Box) *Builder {
	b := NewBuilder(120, 120, 0.01).
		Floor(0).
		Table(Rect{MinX: -0.5, MinY: -0.4, MaxX: 0.5, MaxY: 0.4}, 0.75)
	for _, o := range objects {
		b.Object(o)
	}
	return b
}

// RandomTabletop lays out a table covering the middle 70% of the raster at
// tableHeight with n boxes scattered over it. Boxes are 8 cm squares whose
// tops ramp from 3 cm to between 8 and 18 cm above the table. Layouts are
// reproducible for a given seed.
func RandomTabletop(rows, cols int, spacing, tableHeight float64, n int, seed int64) *Builder {
	b := NewBuilder(rows, cols, spacing).Floor(0)
	halfX := 0.35 * float64(cols-1) * spacing
	halfY := 0.35 * float64(rows-1) * spacing
	b.Table(Rect{MinX: -halfX, MinY: -halfY, MaxX: halfX, MaxY: halfY}, tableHeight)

	const size, margin = 0.08, 0.1
	rng := rand.New(rand.NewSource(seed))
	spanX, spanY := 2*(halfX-margin)-size, 2*(halfY-margin)-size
	if spanX <= 0 || spanY <= 0 {
		return b
	}
	for i := 0; i < n; i++ {
		x := -halfX + margin + rng.Float64()*spanX
		y := -halfY + margin + rng.Float64()*spanY
		bottom := tableHeight + 0.03
		b.Object(Box{
			Rect:   Rect{MinX: x, MinY: y, MaxX: x + size, MaxY: y + size},
			Bottom: bottom,
			Top:    bottom + 0.05 + 0.1*rng.Float64(),
		})
	}
	return b
}
