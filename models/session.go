package models

import "fmt"

// Side identifies one of the two photographic capture angles tracked per
// report. The set is closed: every session carries exactly one state per side.
type Side string

const (
	SideFront Side = "front"
	SideRight Side = "right"
)

// Sides lists every capture side in a stable order.
var Sides = []Side{SideFront, SideRight}

// ParseSide validates a side coming from an external caller.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideFront, SideRight:
		return Side(s), nil
	}
	return "", fmt.Errorf("unknown capture side %q", s)
}

// SideState holds the capture/processing state of one side of the active
// session. Setting a new original image invalidates everything downstream.
type SideState struct {
	Side         Side   `json:"side"`
	OriginalPath string `json:"original_path,omitempty"`
	CroppedPath  string `json:"cropped_path,omitempty"`
	ResultID     string `json:"result_id,omitempty"`
	HasAuto      bool   `json:"has_auto"`
	HasFinal     bool   `json:"has_final"`
}

// ReportSession is the ephemeral working state spanning both sides'
// capture-through-processing pipeline for one report under construction.
// Values are immutable snapshots; mutations produce a new value.
type ReportSession struct {
	ID    string    `json:"id"`
	Front SideState `json:"front"`
	Right SideState `json:"right"`
}

// NewReportSession returns a fresh session with two default side states.
func NewReportSession(id string) ReportSession {
	return ReportSession{
		ID:    id,
		Front: SideState{Side: SideFront},
		Right: SideState{Side: SideRight},
	}
}

// SideState returns the state of the given side. An invalid side is a
// programming error, not an input error, and panics.
func (s ReportSession) SideState(side Side) SideState {
	switch side {
	case SideFront:
		return s.Front
	case SideRight:
		return s.Right
	}
	panic(fmt.Sprintf("models: invalid capture side %q", side))
}

// WithSideState returns a copy of the session with the given side replaced.
func (s ReportSession) WithSideState(st SideState) ReportSession {
	switch st.Side {
	case SideFront:
		s.Front = st
	case SideRight:
		s.Right = st
	default:
		panic(fmt.Sprintf("models: invalid capture side %q", st.Side))
	}
	return s
}
