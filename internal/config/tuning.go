package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/tabletop/internal/fsutil"
	"github.com/banshee-data/tabletop/internal/perception"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// ErrUnsupportedFormat is returned for config files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// TuningConfig represents the root configuration for extraction parameters.
// Every field is optional; the Get* methods supply defaults for anything a
// file leaves out, so partial configs are safe. The same keys are accepted
// in JSON and YAML.
type TuningConfig struct {
	// Validity filter
	FloorDistRemoval *float64 `json:"floor_dist_removal,omitempty" yaml:"floor_dist_removal,omitempty"`
	RangeLimit       *float64 `json:"range_limit,omitempty" yaml:"range_limit,omitempty"`

	// Normal estimation
	BlurKernelSize   *int     `json:"blur_kernel_size,omitempty" yaml:"blur_kernel_size,omitempty"`
	NormalZThreshold *float64 `json:"normal_z_threshold,omitempty" yaml:"normal_z_threshold,omitempty"`

	// Plane detection
	MaxDistToPlane                  *float64 `json:"max_dist_to_plane,omitempty" yaml:"max_dist_to_plane,omitempty"`
	MaxIterations                   *int     `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	MinInlierFraction               *float64 `json:"min_inlier_fraction,omitempty" yaml:"min_inlier_fraction,omitempty"`
	PreferLargestConnectedComponent *bool    `json:"prefer_largest_connected_component,omitempty" yaml:"prefer_largest_connected_component,omitempty"`
	PlaneClusterDistance            *float64 `json:"plane_cluster_distance,omitempty" yaml:"plane_cluster_distance,omitempty"`
	Seed                            *int64   `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Object selection
	MinObjDistToPlane  *float64 `json:"min_obj_dist_to_plane,omitempty" yaml:"min_obj_dist_to_plane,omitempty"`
	MaxObjDistToPlane  *float64 `json:"max_obj_dist_to_plane,omitempty" yaml:"max_obj_dist_to_plane,omitempty"`
	MinContourDistance *float64 `json:"min_contour_distance,omitempty" yaml:"min_contour_distance,omitempty"`
	ObjectsOutsideHull *bool    `json:"objects_outside_hull,omitempty" yaml:"objects_outside_hull,omitempty"`

	// Clustering
	ClusterDistanceThreshold *float64 `json:"cluster_distance_threshold,omitempty" yaml:"cluster_distance_threshold,omitempty"`

	DebugVisualization *bool `json:"debug_visualization,omitempty" yaml:"debug_visualization,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to the
// built-in default.
func DefaultTuningConfig() *TuningConfig {
	p := perception.DefaultParams()
	return &TuningConfig{
		FloorDistRemoval:                ptrFloat64(p.FloorDistRemoval),
		RangeLimit:                      ptrFloat64(p.RangeLimit),
		BlurKernelSize:                  ptrInt(p.BlurKernelSize),
		NormalZThreshold:                ptrFloat64(p.NormalZThreshold),
		MaxDistToPlane:                  ptrFloat64(p.MaxDistToPlane),
		MaxIterations:                   ptrInt(p.MaxIterations),
		MinInlierFraction:               ptrFloat64(p.MinInlierFraction),
		PreferLargestConnectedComponent: ptrBool(p.PreferLargestConnectedComponent),
		PlaneClusterDistance:            ptrFloat64(p.PlaneClusterDistance),
		Seed:                            ptrInt64(p.Seed),
		MinObjDistToPlane:               ptrFloat64(p.MinObjDistToPlane),
		MaxObjDistToPlane:               ptrFloat64(p.MaxObjDistToPlane),
		MinContourDistance:              ptrFloat64(p.MinContourDistance),
		ObjectsOutsideHull:              ptrBool(p.ObjectsOutsideHull),
		ClusterDistanceThreshold:        ptrFloat64(p.ClusterDistanceThreshold),
		DebugVisualization:              ptrBool(p.DebugVisualization),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file on disk.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	return LoadTuningConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadTuningConfigFS loads a TuningConfig through fsys.
// The format is chosen by extension (.json, .yaml or .yml) and the file must
// be under the max file size. Fields omitted from the file stay nil.
func LoadTuningConfigFS(fsys fsutil.FileSystem, path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: config file must be .json, .yaml or .yml, got %q", ErrUnsupportedFormat, ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SaveTuningConfig writes cfg through fsys, choosing the format by extension.
func SaveTuningConfig(fsys fsutil.FileSystem, path string, cfg *TuningConfig) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return fsys.WriteFile(path, data, 0o644)
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that are set. Cross-field constraints are
// checked on the merged parameters, after defaults are applied.
func (c *TuningConfig) Validate() error {
	if c.BlurKernelSize != nil && *c.BlurKernelSize < 0 {
		return fmt.Errorf("blur_kernel_size must be non-negative, got %d", *c.BlurKernelSize)
	}
	if c.MaxIterations != nil && *c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative, got %d", *c.MaxIterations)
	}
	if c.MinInlierFraction != nil {
		if *c.MinInlierFraction < 0 || *c.MinInlierFraction > 1 {
			return fmt.Errorf("min_inlier_fraction must be between 0 and 1, got %f", *c.MinInlierFraction)
		}
	}
	if c.NormalZThreshold != nil {
		if *c.NormalZThreshold <= 0 || *c.NormalZThreshold > 1 {
			return fmt.Errorf("normal_z_threshold must be in (0, 1], got %f", *c.NormalZThreshold)
		}
	}
	if err := c.ToParams().Validate(); err != nil {
		return err
	}
	return nil
}

// ToParams merges the configured values over the defaults.
func (c *TuningConfig) ToParams() perception.Params {
	return perception.Params{
		FloorDistRemoval:                c.GetFloorDistRemoval(),
		RangeLimit:                      c.GetRangeLimit(),
		BlurKernelSize:                  c.GetBlurKernelSize(),
		NormalZThreshold:                c.GetNormalZThreshold(),
		MaxDistToPlane:                  c.GetMaxDistToPlane(),
		MaxIterations:                   c.GetMaxIterations(),
		MinInlierFraction:               c.GetMinInlierFraction(),
		MinObjDistToPlane:               c.GetMinObjDistToPlane(),
		MaxObjDistToPlane:               c.GetMaxObjDistToPlane(),
		MinContourDistance:              c.GetMinContourDistance(),
		ObjectsOutsideHull:              c.GetObjectsOutsideHull(),
		ClusterDistanceThreshold:        c.GetClusterDistanceThreshold(),
		PreferLargestConnectedComponent: c.GetPreferLargestConnectedComponent(),
		PlaneClusterDistance:            c.GetPlaneClusterDistance(),
		DebugVisualization:              c.GetDebugVisualization(),
		Seed:                            c.GetSeed(),
	}
}

// GetFloorDistRemoval returns the floor_dist_removal value or the default.
func (c *TuningConfig) GetFloorDistRemoval() float64 {
	if c.FloorDistRemoval == nil {
		return perception.DefaultFloorDistRemoval
	}
	return *c.FloorDistRemoval
}

// GetRangeLimit returns the range_limit value or the default.
func (c *TuningConfig) GetRangeLimit() float64 {
	if c.RangeLimit == nil {
		return perception.DefaultRangeLimit
	}
	return *c.RangeLimit
}

// GetBlurKernelSize returns the blur_kernel_size value or the default.
func (c *TuningConfig) GetBlurKernelSize() int {
	if c.BlurKernelSize == nil {
		return perception.DefaultBlurKernelSize
	}
	return *c.BlurKernelSize
}

// GetNormalZThreshold returns the normal_z_threshold value or the default.
func (c *TuningConfig) GetNormalZThreshold() float64 {
	if c.NormalZThreshold == nil {
		return perception.DefaultNormalZThreshold
	}
	return *c.NormalZThreshold
}

// GetMaxDistToPlane returns the max_dist_to_plane value or the default.
func (c *TuningConfig) GetMaxDistToPlane() float64 {
	if c.MaxDistToPlane == nil {
		return perception.DefaultMaxDistToPlane
	}
	return *c.MaxDistToPlane
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *TuningConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return perception.DefaultMaxIterations
	}
	return *c.MaxIterations
}

// GetMinInlierFraction returns the min_inlier_fraction value or the default.
func (c *TuningConfig) GetMinInlierFraction() float64 {
	if c.MinInlierFraction == nil {
		return perception.DefaultMinInlierFraction
	}
	return *c.MinInlierFraction
}

// GetPreferLargestConnectedComponent returns the prefer_largest_connected_component value or the default.
func (c *TuningConfig) GetPreferLargestConnectedComponent() bool {
	if c.PreferLargestConnectedComponent == nil {
		return false // default: whole planes
	}
	return *c.PreferLargestConnectedComponent
}

// GetPlaneClusterDistance returns the plane_cluster_distance value or the default.
func (c *TuningConfig) GetPlaneClusterDistance() float64 {
	if c.PlaneClusterDistance == nil {
		return perception.DefaultPlaneClusterDistance
	}
	return *c.PlaneClusterDistance
}

// GetSeed returns the seed value or the default.
func (c *TuningConfig) GetSeed() int64 {
	if c.Seed == nil {
		return perception.DefaultSeed
	}
	return *c.Seed
}

// GetMinObjDistToPlane returns the min_obj_dist_to_plane value or the default.
func (c *TuningConfig) GetMinObjDistToPlane() float64 {
	if c.MinObjDistToPlane == nil {
		return perception.DefaultMinObjDistToPlane
	}
	return *c.MinObjDistToPlane
}

// GetMaxObjDistToPlane returns the max_obj_dist_to_plane value or the default.
func (c *TuningConfig) GetMaxObjDistToPlane() float64 {
	if c.MaxObjDistToPlane == nil {
		return perception.DefaultMaxObjDistToPlane
	}
	return *c.MaxObjDistToPlane
}

// GetMinContourDistance returns the min_contour_distance value or the default.
func (c *TuningConfig) GetMinContourDistance() float64 {
	if c.MinContourDistance == nil {
		return perception.DefaultMinContourDistance
	}
	return *c.MinContourDistance
}

// GetObjectsOutsideHull returns the objects_outside_hull value or the default.
func (c *TuningConfig) GetObjectsOutsideHull() bool {
	if c.ObjectsOutsideHull == nil {
		return false
	}
	return *c.ObjectsOutsideHull
}

// GetClusterDistanceThreshold returns the cluster_distance_threshold value or the default.
func (c *TuningConfig) GetClusterDistanceThreshold() float64 {
	if c.ClusterDistanceThreshold == nil {
		return perception.DefaultClusterDistanceThreshold
	}
	return *c.ClusterDistanceThreshold
}

// GetDebugVisualization returns the debug_visualization value or the default.
func (c *TuningConfig) GetDebugVisualization() bool {
	if c.DebugVisualization == nil {
		return false
	}
	return *c.DebugVisualization
}
