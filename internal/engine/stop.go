package engine

import "sync/atomic"

// StopFlag is the advisory stop signal for a run. The executor polls it
// at step boundaries only; an in-flight step always finishes.
type StopFlag struct {
	stopped atomic.Bool
}

// NewStopFlag creates an unset StopFlag.
func NewStopFlag() *StopFlag {
	return &StopFlag{}
}

// Set requests the run to stop at the next step boundary.
func (f *StopFlag) Set() {
	f.stopped.Store(true)
}

// Stopped reports whether a stop has been requested.
func (f *StopFlag) Stopped() bool {
	return f != nil && f.stopped.Load()
}
