// Package pipeline runs the fixed-rate control loop.
//
// Each tick snapshots the latest scan and odometry, then runs filter,
// segment, track, compose, control and emit in order. Feeds write the
// Inputs mailbox from their own goroutines; only the loop touches
// ControllerState.
//
// Outputs leave through optional sink interfaces so that transports and
// storage stay outside the planner layers.
package pipeline
