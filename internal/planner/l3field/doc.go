// Package l3field owns Layer 3 (Field) of the planner data model.
//
// Responsibilities: superposing obstacle repulsion and goal attraction into a
// per-ray potential and selecting the goal ray at its minimum.
// Key types: Sample, Composer.
//
// Dependency rule: L3 may depend on L1 and L2, but never on L4.
package l3field
