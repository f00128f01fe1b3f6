// Package transcript turns a stream of speech-recognition events into a
// committed transcript plus a provisional tail for display.
package transcript

// EventKind identifies the lifecycle signal carried by an Event.
type EventKind int

const (
	// EventResult carries a window of result slots.
	EventResult EventKind = iota
	// EventError reports a capture error.
	EventError
	// EventStart reports that the underlying capture is live.
	EventStart
	// EventEnd reports that the underlying capture stopped.
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventResult:
		return "result"
	case EventError:
		return "error"
	case EventStart:
		return "start"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Slot is a single recognition result. Final slots will not be revised by the
// recognizer; interim slots are superseded by the next event.
type Slot struct {
	Text  string
	Final bool
}

// Event is one signal from the recognizer.
//
// For EventResult, Results is the recognizer's result list for the current run
// and ResultIndex is the first slot that changed since the previous event.
// Slots before ResultIndex are unchanged and must not be reprocessed.
type Event struct {
	Kind        EventKind
	ResultIndex int
	Results     []Slot
	Code        ErrorCode
	Message     string
}

// ResultEvent builds an EventResult starting at index.
func ResultEvent(index int, slots ...Slot) Event {
	return Event{Kind: EventResult, ResultIndex: index, Results: slots}
}

// ErrorEvent builds an EventError.
func ErrorEvent(code ErrorCode, message string) Event {
	return Event{Kind: EventError, Code: code, Message: message}
}

// Final and Interim are shorthands for building slots.
func Final(text string) Slot   { return Slot{Text: text, Final: true} }
func Interim(text string) Slot { return Slot{Text: text} }
