// Package daemon provides the client and protocol types for driving a speech
// recognition daemon over a Unix socket using NDJSON.
package daemon

// Command is sent from a client to the daemon.
type Command struct {
	Cmd    string   `json:"cmd"`
	Locale string   `json:"locale,omitempty"`
	Device string   `json:"device,omitempty"`
	Events []string `json:"events,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK        bool     `json:"ok"`
	RunID     string   `json:"runId,omitempty"`
	Recording *bool    `json:"recording,omitempty"`
	Devices   []string `json:"devices,omitempty"`
	Error     string   `json:"error,omitempty"`
	Status    string   `json:"status,omitempty"`
	Device    string   `json:"device,omitempty"`
}

// Result is one recognition slot inside a result event.
type Result struct {
	Transcript string   `json:"transcript"`
	IsFinal    bool     `json:"isFinal"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Event is streamed from the daemon to subscribed clients.
//
// Event kinds are "start", "result", "error" and "end". A result event carries
// the full result list of the current run; ResultIndex is the first entry that
// changed since the previous result event.
type Event struct {
	Event       string   `json:"event"`
	RunID       string   `json:"runId,omitempty"`
	ResultIndex *int     `json:"resultIndex,omitempty"`
	Results     []Result `json:"results,omitempty"`
	Error       string   `json:"error,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// Event kinds.
const (
	EventStart  = "start"
	EventResult = "result"
	EventError  = "error"
	EventEnd    = "end"
)

// IntPtr returns a pointer to an int value. Convenience for building events.
func IntPtr(i int) *int { return &i }
