// Package perception extracts horizontal support surfaces and the objects
// resting on them from a single organized point cloud.
//
// Responsibilities: surface-normal estimation, RANSAC horizontal-plane
// detection with PCA refinement, height-band object point selection, and
// aggregation of distance clusters into detected objects.
// Key types: Params, NormalField, PlanarSegment, DetectedObject, Result.
//
// Dependency rule: perception depends on cloud, geom, spatial and timeutil.
// It performs no I/O; rendering and persistence live in debugviz and store.
package perception
