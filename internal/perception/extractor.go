package perception

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/tabletop/internal/cloud"
	"github.com/banshee-data/tabletop/internal/spatial"
	"github.com/banshee-data/tabletop/internal/timeutil"
)

// Stats describes what one extraction saw and how long each stage took.
type Stats struct {
	Rows            int        `json:"rows"`
	Cols            int        `json:"cols"`
	ValidCells      int        `json:"valid_cells"`
	HorizontalCells int        `json:"horizontal_cells"`
	CandidateCells  int        `json:"candidate_cells"`
	MinInliers      int        `json:"min_inliers"`
	Planes          PlaneStats `json:"planes"`
	ObjectPoints    int        `json:"object_points"`

	NormalsDuration time.Duration `json:"normals_ns"`
	PlanesDuration  time.Duration `json:"planes_ns"`
	ObjectsDuration time.Duration `json:"objects_ns"`
	ClusterDuration time.Duration `json:"cluster_ns"`
}

// DebugImages carries the intermediate per-cell products of an extraction.
// Label images are row-major; 0 means unlabelled and n > 0 refers to
// Result.Planes[n-1] or Result.Objects[n-1].
type DebugImages struct {
	Valid        *cloud.Mask
	Horizontal   *cloud.Mask
	Candidates   *cloud.Mask
	Normals      *NormalField
	PlaneLabels  []int
	ObjectLabels []int
}

// Result is the output of one extraction.
type Result struct {
	Planes  []PlanarSegment
	Objects []DetectedObject
	Stats   Stats
	Debug   *DebugImages // nil unless Params.DebugVisualization
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock replaces the clock used for stage timings.
func WithClock(c timeutil.Clock) Option {
	return func(e *Extractor) { e.clock = c }
}

// Extractor runs the tabletop pipeline with fixed parameters. It holds no
// per-call state; concurrent Extract calls on different grids are independent.
type Extractor struct {
	params Params
	clock  timeutil.Clock
}

// NewExtractor validates p and returns an Extractor.
func NewExtractor(p Params, opts ...Option) (*Extractor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e := &Extractor{params: p, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Params returns the extractor's parameters.
func (e *Extractor) Params() Params { return e.params }

// GetObjectsInHorizontalPlanes runs one extraction with p and returns only
// the detected objects.
func GetObjectsInHorizontalPlanes(g *cloud.Grid, p Params) ([]DetectedObject, error) {
	e, err := NewExtractor(p)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	return e.Extract(g).Objects, nil
}

// Extract finds horizontal planes in g and the objects resting on them.
// No horizontal plane, or no object on any plane, yields empty slices.
func (e *Extractor) Extract(g *cloud.Grid) *Result {
	p := e.params
	res := &Result{
		Planes:  []PlanarSegment{},
		Objects: []DetectedObject{},
		Stats:   Stats{Rows: g.Rows, Cols: g.Cols},
	}
	if g.Len() == 0 {
		Opsf("empty grid %dx%d, nothing to extract", g.Rows, g.Cols)
		return res
	}

	// Validity: drop the floor and anything beyond the working range.
	valid := g.RangeMask(
		r3.Vector{X: -p.RangeLimit, Y: -p.RangeLimit, Z: p.FloorDistRemoval},
		r3.Vector{X: p.RangeLimit, Y: p.RangeLimit, Z: p.RangeLimit},
	)
	res.Stats.ValidCells = valid.Count()

	start := e.clock.Now()
	normals := ComputeNormals(cloud.BoxBlur(g, p.BlurKernelSize))
	horizontal := normals.HorizontalMask(p.NormalZThreshold)
	candidates := horizontal.And(valid)
	res.Stats.NormalsDuration = e.clock.Since(start)
	res.Stats.HorizontalCells = horizontal.Count()
	res.Stats.CandidateCells = candidates.Count()

	start = e.clock.Now()
	res.Stats.MinInliers = p.MinInliers(g.Rows, g.Cols)
	detector := PlaneDetector{
		MaxDist:                p.MaxDistToPlane,
		MaxIterations:          p.MaxIterations,
		MinInliers:             res.Stats.MinInliers,
		PreferLargestComponent: p.PreferLargestConnectedComponent,
		ComponentDistance:      p.PlaneClusterDistance,
		Rand:                   rand.New(rand.NewSource(p.Seed)),
	}
	planes, planeStats := detector.Extract(g, candidates)
	if planes != nil {
		res.Planes = planes
	}
	res.Stats.Planes = planeStats
	res.Stats.PlanesDuration = e.clock.Since(start)
	Diagf("horizontal planes: %d found, %d iterations, %d candidates, min inliers %d, t=%v",
		len(res.Planes), planeStats.Iterations, res.Stats.CandidateCells, res.Stats.MinInliers, res.Stats.PlanesDuration)

	// Object candidates over every plane; a cell is reported once, for the
	// first plane that claims it.
	start = e.clock.Now()
	segmenter := ObjectSegmenter{
		MinDist:        p.MinObjDistToPlane,
		MaxDist:        p.MaxObjDistToPlane,
		MinContourDist: p.MinContourDistance,
		Outside:        p.ObjectsOutsideHull,
	}
	claimed := make([]bool, g.Len())
	var candidatesPts []ObjectPoint
	for _, seg := range res.Planes {
		for _, op := range segmenter.Extract(g, seg) {
			off := g.Offset(op.Index.Row, op.Index.Col)
			if claimed[off] {
				continue
			}
			claimed[off] = true
			candidatesPts = append(candidatesPts, op)
		}
	}
	res.Stats.ObjectPoints = len(candidatesPts)
	res.Stats.ObjectsDuration = e.clock.Since(start)
	Diagf("object points: %d over %d planes, t=%v", len(candidatesPts), len(res.Planes), res.Stats.ObjectsDuration)

	start = e.clock.Now()
	pts := make([]r3.Vector, len(candidatesPts))
	for i, c := range candidatesPts {
		pts[i] = c.Point
	}
	clusters := spatial.ClusterByDistance(pts, p.ClusterDistanceThreshold)
	res.Objects = AggregateObjects(candidatesPts, clusters)
	res.Stats.ClusterDuration = e.clock.Since(start)
	Diagf("objects: %d clusters, t=%v", len(res.Objects), res.Stats.ClusterDuration)

	if p.DebugVisualization {
		res.Debug = &DebugImages{
			Valid:        valid,
			Horizontal:   horizontal,
			Candidates:   candidates,
			Normals:      normals,
			PlaneLabels:  planeLabels(g, res.Planes),
			ObjectLabels: objectLabels(g, res.Objects),
		}
	}
	return res
}

func planeLabels(g *cloud.Grid, planes []PlanarSegment) []int {
	labels := make([]int, g.Len())
	for i, seg := range planes {
		for _, idx := range seg.Indices {
			labels[g.Offset(idx.Row, idx.Col)] = i + 1
		}
	}
	return labels
}

func objectLabels(g *cloud.Grid, objects []DetectedObject) []int {
	labels := make([]int, g.Len())
	for i, obj := range objects {
		for _, idx := range obj.Indices {
			labels[g.Offset(idx.Row, idx.Col)] = i + 1
		}
	}
	return labels
}
