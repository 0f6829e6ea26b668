// Package l2obstacles owns Layer 2 (Obstacles) of the planner data model.
//
// Responsibilities: the detection window around the front ray and the
// segmentation of a conditioned scan into obstacle clusters, each summarised
// by its bearing, angular spread and repulsive magnitude.
// Key types: Window, Obstacle, Segmenter.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2obstacles
