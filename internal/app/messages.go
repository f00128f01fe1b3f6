package app

import (
	"github.com/scribe-notes/scribe/internal/handoff"
	"github.com/scribe-notes/scribe/internal/transcript"
)

// RecognizerEventMsg wraps one event from the recognizer.
type RecognizerEventMsg struct {
	Event transcript.Event
}

// RecognizerClosedMsg is sent when the recognizer event channel closes.
type RecognizerClosedMsg struct{}

// StartResultMsg carries the outcome of starting the recognizer.
type StartResultMsg struct {
	Err error
}

// RestartMsg fires when a scheduled restart delay has elapsed.
type RestartMsg struct {
	Generation uint64
}

// HandoffDoneMsg reports that a stopped session was handed off.
type HandoffDoneMsg struct {
	Artifact handoff.Artifact
	Err      error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}
