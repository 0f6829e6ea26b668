package main

import "github.com/banshee-data/fieldpilot/internal/planner/pipeline"

type teeTelemetry []pipeline.TelemetrySink

func (t teeTelemetry) RecordTick(r pipeline.TickRecord) {
	for _, s := range t {
		s.RecordTick(r)
	}
}

type teeTrajectory []pipeline.TrajectorySink

func (t teeTrajectory) RecordPose(s pipeline.TrajectorySample) {
	for _, sink := range t {
		sink.RecordPose(s)
	}
}

// telemetrySink collapses sinks so the loop sees nil when there are none.
func telemetrySink(sinks ...pipeline.TelemetrySink) pipeline.TelemetrySink {
	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	}
	return teeTelemetry(sinks)
}

func trajectorySink(sinks ...pipeline.TrajectorySink) pipeline.TrajectorySink {
	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	}
	return teeTrajectory(sinks)
}
