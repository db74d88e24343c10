package synthesis

import "time"

// State is a sequencer state
type State int

const (
	Idle State = iota
	ReferenceCaptured
	BackgroundCaptured
	PumpsConfigured
	Running
	AwaitingMeasurement
	MeasurementComplete
	Terminal
)

var stateNames = [...]string{
	Idle:                "Idle",
	ReferenceCaptured:   "ReferenceCaptured",
	BackgroundCaptured:  "BackgroundCaptured",
	PumpsConfigured:     "PumpsConfigured",
	Running:             "Running",
	AwaitingMeasurement: "AwaitingMeasurement",
	MeasurementComplete: "MeasurementComplete",
	Terminal:            "Terminal",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Status is a point-in-time view of a sequencer
type Status struct {
	SessionID string
	State     State
	Since     time.Time
	LastRunID string
}
