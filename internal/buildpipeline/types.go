// Package buildpipeline turns serialized resolved programs into LLVM
// units, executables, or VM runs.
package buildpipeline

import "time"

// Stage is a step of building one unit.
type Stage string

const (
	StageDecode Stage = "decode"
	StageLower  Stage = "lower"
	StageEmit   Stage = "emit"
	StageLink   Stage = "link"
	StageRun    Stage = "run"
)

// Status is the state of a unit within a stage.
type Status string

const (
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusCached  Status = "cached"
	StatusError   Status = "error"
)

// Event reports progress of one unit.
type Event struct {
	Unit    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink receives events. BuildAll calls it from several
// goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(ev Event) { f(ev) }

func emit(sink ProgressSink, unit string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Unit: unit, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(ev Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- ev
}
