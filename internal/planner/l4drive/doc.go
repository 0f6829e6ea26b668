// Package l4drive owns Layer 4 (Drive) of the planner data model.
//
// Responsibilities: converting the goal ray into an Ackermann steering angle
// through a pure-pursuit style curvature law, and choosing a target speed
// from forward clearance under a friction limit.
// Key types: Command, Steering, Cruise.
//
// Dependency rule: L4 may depend on L1 through L3, never on the pipeline.
package l4drive
