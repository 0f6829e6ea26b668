// Package waypoints tracks the vehicle along a closed loop of reference
// waypoints and produces the lookahead goal the field composer steers toward.
//
// Responsibilities: loading the loop, the monotone nearest-waypoint search,
// speed-scaled lookahead selection, the map-to-vehicle transform, and lap
// timing on wrap-around.
// Key types: Path, Pose, Tracker, Target, LapTimer.
//
// Dependency rule: waypoints has no dependencies on the planner layers.
package waypoints
