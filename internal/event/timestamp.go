package event

import "time"

// TimeStamp is a monotonic nanosecond counter, the Go analogue of the
// original source's `absolute_time_point` (spec.md §3 "Event time
// stamp"). It is not wall-clock time; only relative ordering and
// addition of durations matter to the pipeline.
type TimeStamp int64

// processStart is the monotonic clock reading Now measures from.
var processStart = time.Now()

// Now returns the current monotonic time stamp: the time elapsed since
// processStart, measured on the monotonic clock time.Since uses.
func Now() TimeStamp {
	return TimeStamp(time.Since(processStart))
}

// Add returns the time stamp advanced by d.
func (t TimeStamp) Add(d time.Duration) TimeStamp {
	return t + TimeStamp(d)
}

// Duration converts a time.Duration to the TimeStamp's nanosecond unit,
// for arithmetic against raw TimeStamp values.
func Duration(d time.Duration) TimeStamp {
	return TimeStamp(d)
}

// EventTimeStamp pairs a base time stamp with an optional input-delay
// duration indicating how far in the future a manipulator wishes this
// entry to be processed (spec.md §3).
type EventTimeStamp struct {
	TimeStamp          TimeStamp
	InputDelayDuration TimeStamp
}

// NewEventTimeStamp builds an EventTimeStamp with no delay.
func NewEventTimeStamp(t TimeStamp) EventTimeStamp {
	return EventTimeStamp{TimeStamp: t}
}

// Scheduled returns the effective scheduling time: time_stamp +
// input_delay_duration (spec.md §4.1, §4.5.3, §8).
func (e EventTimeStamp) Scheduled() TimeStamp {
	return e.TimeStamp + e.InputDelayDuration
}

// WithAddedDelay returns a copy with the input delay duration increased
// by d. Used by manipulators that schedule deferred emissions.
func (e EventTimeStamp) WithAddedDelay(d TimeStamp) EventTimeStamp {
	e.InputDelayDuration += d
	return e
}
