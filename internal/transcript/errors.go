package transcript

import (
	"errors"
	"fmt"
)

var (
	// ErrStartupUnsupported means the capture could not start for this
	// session: the capability is absent or access was denied. Terminal.
	ErrStartupUnsupported = errors.New("speech recognition unavailable")

	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	ErrAlreadyPaused    = errors.New("already paused")
	ErrNotPaused        = errors.New("not paused")
)

// ErrorCode is a recognizer error code. The values follow the names browsers
// and speech daemons commonly report.
type ErrorCode string

const (
	ErrorNoSpeech            ErrorCode = "no-speech"
	ErrorAborted             ErrorCode = "aborted"
	ErrorAudioCapture        ErrorCode = "audio-capture"
	ErrorNetwork             ErrorCode = "network"
	ErrorNotAllowed          ErrorCode = "not-allowed"
	ErrorServiceNotAllowed   ErrorCode = "service-not-allowed"
	ErrorLanguageUnsupported ErrorCode = "language-not-supported"
	ErrorRestartFailed       ErrorCode = "restart-failed"
)

// Fatal reports whether the code means the capture cannot work at all.
// Fatal codes only end a session when they arrive before the capture has
// started; later they are treated like any other transient error.
func (c ErrorCode) Fatal() bool {
	switch c {
	case ErrorNotAllowed, ErrorServiceNotAllowed, ErrorAudioCapture, ErrorLanguageUnsupported:
		return true
	}
	return false
}

// Notice is the text shown on an empty display after this error.
func (c ErrorCode) Notice() string {
	switch c {
	case ErrorNoSpeech:
		return NoticeNoSpeech
	case ErrorNetwork:
		return NoticeNetwork
	case ErrorAborted:
		return ""
	case ErrorRestartFailed:
		return NoticeReconnecting
	default:
		return "Error: " + string(c)
	}
}

// CaptureError is a non-fatal error reported by the recognizer mid-session.
type CaptureError struct {
	Code    ErrorCode
	Message string
}

func (e *CaptureError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("capture error: %s", e.Code)
	}
	return fmt.Sprintf("capture error: %s: %s", e.Code, e.Message)
}

// Transient is always true; a CaptureError never ends the session.
func (e *CaptureError) Transient() bool { return true }
