package perception

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is wrapped by every Params validation failure.
var ErrInvalidParams = errors.New("invalid extraction parameters")

// Default extraction parameters, in metres where a distance is involved.
const (
	DefaultFloorDistRemoval         = 0.15
	DefaultRangeLimit               = 3.0
	DefaultBlurKernelSize           = 5
	DefaultNormalZThreshold         = 0.8
	DefaultMaxDistToPlane           = 0.02
	DefaultMaxIterations            = 1000
	DefaultMinInlierFraction        = 0.05
	DefaultMinObjDistToPlane        = DefaultMaxDistToPlane
	DefaultMaxObjDistToPlane        = 0.25
	DefaultMinContourDistance       = 0.02
	DefaultClusterDistanceThreshold = 0.05
	DefaultPlaneClusterDistance     = 0.10
	DefaultSeed                     = 1
)

// Params configures one extraction. The zero value is not usable; start
// from DefaultParams.
type Params struct {
	// Validity filter: x,y within ±RangeLimit and z within
	// [FloorDistRemoval, RangeLimit], bounds inclusive.
	FloorDistRemoval float64 `json:"floor_dist_removal"`
	RangeLimit       float64 `json:"range_limit"`

	// Normal estimation runs on a BlurKernelSize box-filtered copy of the
	// cloud; a cell is a horizontal candidate when normal.z ≥ NormalZThreshold.
	BlurKernelSize   int     `json:"blur_kernel_size"`
	NormalZThreshold float64 `json:"normal_z_threshold"`

	// RANSAC plane detection. A plane needs at least
	// rows*cols*MinInlierFraction inliers.
	MaxDistToPlane    float64 `json:"max_dist_to_plane"`
	MaxIterations     int     `json:"max_iterations"`
	MinInlierFraction float64 `json:"min_inlier_fraction"`

	// Object points sit strictly between MinObjDistToPlane and
	// MaxObjDistToPlane above a plane, more than MinContourDistance inside
	// its hull (outside, when ObjectsOutsideHull is set).
	MinObjDistToPlane  float64 `json:"min_obj_dist_to_plane"`
	MaxObjDistToPlane  float64 `json:"max_obj_dist_to_plane"`
	MinContourDistance float64 `json:"min_contour_distance"`
	ObjectsOutsideHull bool    `json:"objects_outside_hull"`

	// ClusterDistanceThreshold separates object instances.
	ClusterDistanceThreshold float64 `json:"cluster_distance_threshold"`

	// PreferLargestConnectedComponent keeps only the largest
	// PlaneClusterDistance cluster of each plane's inliers.
	PreferLargestConnectedComponent bool    `json:"prefer_largest_connected_component"`
	PlaneClusterDistance            float64 `json:"plane_cluster_distance"`

	// DebugVisualization attaches intermediate masks and label images to the Result.
	DebugVisualization bool `json:"debug_visualization"`

	// Seed initialises the RANSAC sampler; equal seeds give equal results.
	Seed int64 `json:"seed"`
}

// DefaultParams returns the standard tabletop parameters.
func DefaultParams() Params {
	return Params{
		FloorDistRemoval:         DefaultFloorDistRemoval,
		RangeLimit:               DefaultRangeLimit,
		BlurKernelSize:           DefaultBlurKernelSize,
		NormalZThreshold:         DefaultNormalZThreshold,
		MaxDistToPlane:           DefaultMaxDistToPlane,
		MaxIterations:            DefaultMaxIterations,
		MinInlierFraction:        DefaultMinInlierFraction,
		MinObjDistToPlane:        DefaultMinObjDistToPlane,
		MaxObjDistToPlane:        DefaultMaxObjDistToPlane,
		MinContourDistance:       DefaultMinContourDistance,
		ClusterDistanceThreshold: DefaultClusterDistanceThreshold,
		PlaneClusterDistance:     DefaultPlaneClusterDistance,
		Seed:                     DefaultSeed,
	}
}

// MinInliers returns the inlier count a plane needs on a rows×cols grid.
func (p Params) MinInliers(rows, cols int) int {
	return int(float64(rows*cols) * p.MinInlierFraction)
}

// Validate checks that the parameters describe a usable extraction.
func (p Params) Validate() error {
	finite := map[string]float64{
		"floor_dist_removal":         p.FloorDistRemoval,
		"range_limit":                p.RangeLimit,
		"normal_z_threshold":         p.NormalZThreshold,
		"max_dist_to_plane":          p.MaxDistToPlane,
		"min_inlier_fraction":        p.MinInlierFraction,
		"min_obj_dist_to_plane":      p.MinObjDistToPlane,
		"max_obj_dist_to_plane":      p.MaxObjDistToPlane,
		"min_contour_distance":       p.MinContourDistance,
		"cluster_distance_threshold": p.ClusterDistanceThreshold,
		"plane_cluster_distance":     p.PlaneClusterDistance,
	}
	for name, v := range finite {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidParams, name, v)
		}
	}

	if p.RangeLimit <= 0 {
		return fmt.Errorf("%w: range_limit must be positive, got %v", ErrInvalidParams, p.RangeLimit)
	}
	if p.FloorDistRemoval > p.RangeLimit {
		return fmt.Errorf("%w: floor_dist_removal %v exceeds range_limit %v", ErrInvalidParams, p.FloorDistRemoval, p.RangeLimit)
	}
	if p.BlurKernelSize < 0 || (p.BlurKernelSize > 1 && p.BlurKernelSize%2 == 0) {
		return fmt.Errorf("%w: blur_kernel_size must be 0, 1 or odd, got %d", ErrInvalidParams, p.BlurKernelSize)
	}
	if p.NormalZThreshold <= 0 || p.NormalZThreshold > 1 {
		return fmt.Errorf("%w: normal_z_threshold must be in (0, 1], got %v", ErrInvalidParams, p.NormalZThreshold)
	}
	if p.MaxDistToPlane <= 0 {
		return fmt.Errorf("%w: max_dist_to_plane must be positive, got %v", ErrInvalidParams, p.MaxDistToPlane)
	}
	if p.MaxIterations < 0 {
		return fmt.Errorf("%w: max_iterations must be non-negative, got %d", ErrInvalidParams, p.MaxIterations)
	}
	if p.MinInlierFraction < 0 || p.MinInlierFraction > 1 {
		return fmt.Errorf("%w: min_inlier_fraction must be in [0, 1], got %v", ErrInvalidParams, p.MinInlierFraction)
	}
	if p.MinObjDistToPlane < 0 || p.MaxObjDistToPlane <= p.MinObjDistToPlane {
		return fmt.Errorf("%w: object height band (%v, %v) is empty", ErrInvalidParams, p.MinObjDistToPlane, p.MaxObjDistToPlane)
	}
	if p.ClusterDistanceThreshold <= 0 {
		return fmt.Errorf("%w: cluster_distance_threshold must be positive, got %v", ErrInvalidParams, p.ClusterDistanceThreshold)
	}
	if p.PreferLargestConnectedComponent && p.PlaneClusterDistance <= 0 {
		return fmt.Errorf("%w: plane_cluster_distance must be positive, got %v", ErrInvalidParams, p.PlaneClusterDistance)
	}
	return nil
}
