package perception

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tabletop/internal/cloud"
	"github.com/banshee-data/tabletop/internal/scene"
)

// candidateMask reproduces the extractor's candidate selection for g.
func candidateMask(g *cloud.Grid, p Params) *cloud.Mask {
	valid := g.RangeMask(
		r3.Vector{X: -p.RangeLimit, Y: -p.RangeLimit, Z: p.FloorDistRemoval},
		r3.Vector{X: p.RangeLimit, Y: p.RangeLimit, Z: p.RangeLimit},
	)
	normals := ComputeNormals(cloud.BoxBlur(g, p.BlurKernelSize))
	return normals.HorizontalMask(p.NormalZThreshold).And(valid)
}

func detectorFor(g *cloud.Grid, p Params) PlaneDetector {
	return PlaneDetector{
		MaxDist:                p.MaxDistToPlane,
		MaxIterations:          p.MaxIterations,
		MinInliers:             p.MinInliers(g.Rows, g.Cols),
		PreferLargestComponent: p.PreferLargestConnectedComponent,
		ComponentDistance:      p.PlaneClusterDistance,
		Rand:                   rand.New(rand.NewSource(p.Seed)),
	}
}

func assertStatsBalance(t *testing.T, stats PlaneStats, segments int) {
	t.Helper()
	assert.Equal(t, stats.Iterations, stats.Degenerate+stats.Tilted+stats.TooSmall+segments,
		"every iteration is either abandoned or yields a segment: %+v", stats)
}

func assertDisjoint(t *testing.T, segs []PlanarSegment) {
	t.Helper()
	seen := map[cloud.Index]int{}
	for i, s := range segs {
		for _, idx := range s.Indices {
			if prev, ok := seen[idx]; ok {
				t.Errorf("cell %v in segments %d and %d", idx, prev, i)
			}
			seen[idx] = i
		}
	}
}

func TestPlaneDetector_SingleTable(t *testing.T) {
	s := scene.Tabletop().Build()
	p := DefaultParams()
	mask := candidateMask(s.Grid, p)
	d := detectorFor(s.Grid, p)

	segs, stats := d.Extract(s.Grid, mask)
	require.Len(t, segs, 1)
	seg := segs[0]

	assert.Equal(t, mask.Count(), stats.Candidates)
	assert.GreaterOrEqual(t, seg.InlierCount(), d.MinInliers)
	assert.Len(t, seg.Indices, seg.InlierCount())
	assert.GreaterOrEqual(t, math.Abs(seg.Plane.Normal.Z), 0.99)
	assert.InDelta(t, 0.75, seg.Plane.Point.Z, 1e-9)
	assertStatsBalance(t, stats, len(segs))

	// Every inlier lies within MaxDist of the final plane and is a candidate.
	for i, p := range seg.Points {
		assert.Less(t, seg.Plane.Distance(p), d.MaxDist)
		idx := seg.Indices[i]
		assert.True(t, mask.Get(idx.Row, idx.Col), "inlier %v is not a candidate", idx)
		assert.Equal(t, s.Grid.At(idx.Row, idx.Col), p)
	}

	// The hull stays within the table footprint.
	for _, v := range seg.Hull.Vertices {
		assert.True(t, math.Abs(v[0]) <= 0.5 && math.Abs(v[1]) <= 0.4, "hull vertex %v", v)
	}
	assert.Greater(t, seg.Hull.Area(), 0.5)
}

func TestPlaneDetector_NoisyTable(t *testing.T) {
	b := scene.Tabletop()
	b.Noise = 0.004
	b.Seed = 3
	s := b.Build()
	p := DefaultParams()

	segs, stats := detectorFor(s.Grid, p).Extract(s.Grid, candidateMask(s.Grid, p))
	require.Len(t, segs, 1)
	assert.GreaterOrEqual(t, segs[0].Plane.Normal.Z, 0.99)
	assert.InDelta(t, 0.75, segs[0].Plane.Point.Z, 0.002)
	assertStatsBalance(t, stats, 1)
}

func TestPlaneDetector_TwoHeights(t *testing.T) {
	s := scene.NewBuilder(120, 120, 0.01).
		Floor(0).
		Table(scene.Rect{MinX: -0.55, MinY: -0.4, MaxX: -0.05, MaxY: 0.4}, 0.75).
		Table(scene.Rect{MinX: 0.05, MinY: -0.4, MaxX: 0.55, MaxY: 0.4}, 0.45).
		Build()
	p := DefaultParams()

	segs, stats := detectorFor(s.Grid, p).Extract(s.Grid, candidateMask(s.Grid, p))
	require.Len(t, segs, 2)
	assertDisjoint(t, segs)
	assertStatsBalance(t, stats, 2)

	heights := []float64{segs[0].Plane.Point.Z, segs[1].Plane.Point.Z}
	assert.ElementsMatch(t, []float64{0.75, 0.45}, []float64{
		math.Round(heights[0]*100) / 100,
		math.Round(heights[1]*100) / 100,
	})
}

func TestPlaneDetector_PreferLargestComponent(t *testing.T) {
	build := func() *cloud.Grid {
		return scene.NewBuilder(120, 120, 0.01).
			Floor(0).
			Table(scene.Rect{MinX: -0.55, MinY: -0.4, MaxX: -0.1, MaxY: 0.4}, 0.75).
			Table(scene.Rect{MinX: 0.1, MinY: -0.4, MaxX: 0.55, MaxY: 0.4}, 0.75).
			Build().Grid
	}

	t.Run("coplanar patches merge by default", func(t *testing.T) {
		g := build()
		p := DefaultParams()
		segs, _ := detectorFor(g, p).Extract(g, candidateMask(g, p))
		require.Len(t, segs, 1)

		var left, right int
		for _, pt := range segs[0].Points {
			if pt.X < 0 {
				left++
			} else {
				right++
			}
		}
		assert.Positive(t, left)
		assert.Positive(t, right)
	})

	t.Run("largest component splits patches", func(t *testing.T) {
		g := build()
		p := DefaultParams()
		p.PreferLargestConnectedComponent = true
		segs, stats := detectorFor(g, p).Extract(g, candidateMask(g, p))
		require.Len(t, segs, 2)
		assertDisjoint(t, segs)
		assertStatsBalance(t, stats, 2)

		for i, seg := range segs {
			side := math.Signbit(seg.Points[0].X)
			for _, pt := range seg.Points {
				if math.Signbit(pt.X) != side {
					t.Fatalf("segment %d spans both patches", i)
				}
			}
		}
	})
}

func TestPlaneDetector_NothingToFind(t *testing.T) {
	s := scene.Tabletop().Build()
	p := DefaultParams()
	d := detectorFor(s.Grid, p)

	t.Run("nil mask", func(t *testing.T) {
		segs, stats := d.Extract(s.Grid, nil)
		assert.Empty(t, segs)
		assert.Zero(t, stats.Iterations)
	})

	t.Run("empty mask", func(t *testing.T) {
		segs, stats := d.Extract(s.Grid, cloud.NewMask(s.Grid.Rows, s.Grid.Cols))
		assert.Empty(t, segs)
		assert.Zero(t, stats.Candidates)
	})

	t.Run("mismatched mask", func(t *testing.T) {
		mask := cloud.NewMask(3, 3)
		for i := range mask.Bits {
			mask.Bits[i] = true
		}
		segs, _ := d.Extract(s.Grid, mask)
		assert.Empty(t, segs)
	})

	t.Run("min inliers above candidates", func(t *testing.T) {
		big := d
		big.MinInliers = s.Grid.Len()
		segs, stats := big.Extract(s.Grid, candidateMask(s.Grid, p))
		assert.Empty(t, segs)
		assert.Zero(t, stats.Iterations)
	})

	t.Run("zero iterations", func(t *testing.T) {
		none := d
		none.MaxIterations = 0
		segs, stats := none.Extract(s.Grid, candidateMask(s.Grid, p))
		assert.Empty(t, segs)
		assert.Equal(t, stats.Candidates, stats.Remaining)
	})
}

func TestPlaneDetector_VerticalWallIgnored(t *testing.T) {
	// A wall spanning x = const: every sample is either degenerate or tilted.
	g := cloud.NewGrid(30, 30)
	mask := cloud.NewMask(30, 30)
	for r := 0; r < 30; r++ {
		for c := 0; c < 30; c++ {
			g.Set(r, c, r3.Vector{X: 1, Y: float64(c) * 0.01, Z: 0.5 + float64(r)*0.01})
			mask.Set(r, c, true)
		}
	}
	d := PlaneDetector{MaxDist: 0.02, MaxIterations: 50, MinInliers: 10, Rand: rand.New(rand.NewSource(1))}
	segs, stats := d.Extract(g, mask)
	assert.Empty(t, segs)
	assert.Equal(t, 50, stats.Iterations)
	assert.Equal(t, 50, stats.Degenerate+stats.Tilted)
}

func TestExtractHorizontalPlanes(t *testing.T) {
	s := scene.Tabletop().Build()
	p := DefaultParams()
	segs := ExtractHorizontalPlanes(s.Grid, candidateMask(s.Grid, p), p.MaxDistToPlane, p.MaxIterations, p.MinInliers(s.Grid.Rows, s.Grid.Cols))
	require.Len(t, segs, 1)
	assert.InDelta(t, 0.75, segs[0].Plane.Point.Z, 1e-9)
}

func TestSampleThree_Distinct(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, n := range []int{3, 4, 10} {
		hits := make([]int, n)
		for trial := 0; trial < 2000; trial++ {
			i, j, k := sampleThree(rng, n)
			require.True(t, i != j && j != k && i != k, "n=%d drew %d,%d,%d", n, i, j, k)
			for _, v := range []int{i, j, k} {
				require.True(t, v >= 0 && v < n)
				hits[v]++
			}
		}
		for v, h := range hits {
			assert.Positive(t, h, "n=%d never drew %d", n, v)
		}
	}
}
