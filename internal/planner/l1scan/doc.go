// Package l1scan owns Layer 1 (Scans) of the planner data model.
//
// Responsibilities: the planar range scan as received from the sensor,
// per-tick conditioning of that scan (gap fill and edge smoothing), and the
// forward clearance estimate the speed policy reads.
// Key types: RangeScan, Filter.
//
// Dependency rule: L1 has no dependencies on other planner layers.
package l1scan
