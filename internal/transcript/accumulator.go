package transcript

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Placeholder text shown on the display surface. Never part of a transcript.
const (
	NoticeListening    = "Listening... Start speaking!"
	NoticeNoSpeech     = "No speech detected. Continue speaking..."
	NoticeNetwork      = "Network error. Please check your connection."
	NoticeReconnecting = "Recognizer disconnected. Reconnecting..."
	NoticeUnsupported  = "Speech recognition is not available. Check the recognizer settings."
)

const (
	DefaultSeparator       = " "
	DefaultRestartDelay    = 100 * time.Millisecond
	DefaultMaxRestartDelay = 5 * time.Second
)

// State is the session state owned by an Accumulator.
type State struct {
	Recording bool
	Paused    bool
}

// Active reports whether results should currently be accepted.
func (s State) Active() bool { return s.Recording && !s.Paused }

// Display is what the rendering surface shows: committed text, the
// provisional tail, and an optional placeholder or error notice.
type Display struct {
	Final   string
	Interim string
	Notice  string
}

// Text returns the transcript text on the surface. Notices are excluded.
func (d Display) Text() string {
	return join(d.Final, d.Interim, DefaultSeparator)
}

// Restart asks the caller to restart the recognizer after Delay, then confirm
// with RestartDue(Generation) before doing so.
type Restart struct {
	Generation uint64
	Delay      time.Duration
}

// Outcome is the result of feeding one event or failure to the Accumulator.
type Outcome struct {
	Display Display
	Restart *Restart
	Err     error
}

// Transcript is the finalized artifact of a session.
type Transcript struct {
	Text     string
	Segments []string
	// Fallback is set when Text came from the display surface because no
	// segment was ever finalized.
	Fallback bool
}

// Stats counts what a session has seen.
type Stats struct {
	Results         int
	Finals          int
	Interims        int
	Restarts        int
	TransientErrors int
}

// Options configures an Accumulator. Zero values select the defaults.
type Options struct {
	Separator       string
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration
}

// Accumulator maintains the committed transcript of one session at a time.
// It is not safe for concurrent use; callers serialize all calls on one
// goroutine.
type Accumulator struct {
	sep      string
	delay    time.Duration
	maxDelay time.Duration

	state    State
	started  bool // capture went live at least once this session
	final    string
	segments []string
	interim  string
	notice   string

	// runFinals holds the final text committed at each slot index of the
	// current recognizer run.
	runFinals []string

	generation uint64
	pending    uint64
	failures   int

	stats Stats
}

// New returns an idle Accumulator.
func New(opts Options) *Accumulator {
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.MaxRestartDelay < opts.RestartDelay {
		opts.MaxRestartDelay = DefaultMaxRestartDelay
		if opts.MaxRestartDelay < opts.RestartDelay {
			opts.MaxRestartDelay = opts.RestartDelay
		}
	}
	return &Accumulator{
		sep:      opts.Separator,
		delay:    opts.RestartDelay,
		maxDelay: opts.MaxRestartDelay,
	}
}

// State returns the current session state.
func (a *Accumulator) State() State { return a.state }

// FinalText returns the committed transcript. After Stop it is frozen until
// the next Start.
func (a *Accumulator) FinalText() string { return a.final }

// Stats returns the counters for the current or last session.
func (a *Accumulator) Stats() Stats { return a.stats }

// Display returns what the surface should show.
func (a *Accumulator) Display() Display {
	return Display{Final: a.final, Interim: a.interim, Notice: a.notice}
}

// Start begins a new session. The committed transcript is cleared here and
// nowhere else.
func (a *Accumulator) Start() error {
	if a.state.Recording {
		return ErrAlreadyRecording
	}
	a.state = State{Recording: true}
	a.started = false
	a.final = ""
	a.segments = nil
	a.interim = ""
	a.notice = NoticeListening
	a.runFinals = nil
	a.pending = 0
	a.failures = 0
	a.stats = Stats{}
	return nil
}

// Ingest applies one recognizer event.
func (a *Accumulator) Ingest(ev Event) Outcome {
	switch ev.Kind {
	case EventResult:
		a.ingestResults(ev)
	case EventStart:
		a.started = true
		a.runFinals = nil
		a.failures = 0
	case EventEnd:
		return a.handleEnd()
	case EventError:
		return a.handleError(ev)
	}
	return Outcome{Display: a.Display()}
}

func (a *Accumulator) ingestResults(ev Event) {
	if !a.state.Active() {
		return
	}
	a.stats.Results++
	a.started = true
	a.failures = 0

	start := ev.ResultIndex
	if start < 0 {
		start = 0
	}
	var interim string
	for i := start; i < len(ev.Results); i++ {
		slot := ev.Results[i]
		if !slot.Final {
			interim = join(interim, slot.Text, a.sep)
			continue
		}
		text := strings.TrimSpace(slot.Text)
		if a.committed(i, text) {
			continue
		}
		a.remember(i, text)
		if text == "" {
			continue
		}
		a.final = join(a.final, slot.Text, a.sep)
		a.segments = append(a.segments, text)
		a.stats.Finals++
	}
	if interim != "" {
		a.stats.Interims++
	}
	a.interim = interim
	if a.final != "" || a.interim != "" {
		a.notice = ""
	} else if a.notice == "" {
		a.notice = NoticeListening
	}
}

func (a *Accumulator) handleEnd() Outcome {
	a.interim = ""
	if !a.state.Active() {
		return Outcome{Display: a.Display()}
	}
	r := a.scheduleRestart()
	return Outcome{Display: a.Display(), Restart: r}
}

func (a *Accumulator) handleError(ev Event) Outcome {
	if !a.state.Recording {
		return Outcome{Display: a.Display()}
	}
	if ev.Code.Fatal() && !a.started {
		return Outcome{Display: a.fail(), Err: startupError(ev.Code, ev.Message)}
	}
	a.stats.TransientErrors++
	a.interim = ""
	if a.final == "" {
		a.notice = ev.Code.Notice()
	}
	return Outcome{Display: a.Display(), Err: &CaptureError{Code: ev.Code, Message: ev.Message}}
}

// StartFailed reports that starting the recognizer failed. Before the
// capture has ever gone live this ends the session; afterwards it is treated
// as a failed restart and another attempt is scheduled with backoff.
func (a *Accumulator) StartFailed(err error) Outcome {
	if !a.state.Recording {
		return Outcome{Display: a.Display()}
	}
	if !a.started {
		return Outcome{Display: a.fail(), Err: fmt.Errorf("%w: %v", ErrStartupUnsupported, err)}
	}
	a.stats.TransientErrors++
	a.failures++
	a.interim = ""
	if a.final == "" {
		a.notice = NoticeReconnecting
	}
	out := Outcome{
		Display: a.Display(),
		Err:     &CaptureError{Code: ErrorRestartFailed, Message: err.Error()},
	}
	if a.state.Active() {
		out.Restart = a.scheduleRestart()
	}
	return out
}

// RestartDue reports whether the restart issued with generation should go
// ahead. It must be called when the restart delay elapses: the session may
// have been paused, stopped, or disconnected again in the meantime.
func (a *Accumulator) RestartDue(generation uint64) bool {
	if generation == 0 || generation != a.pending || !a.state.Active() {
		return false
	}
	a.pending = 0
	a.runFinals = nil
	return true
}

// Pause stops accepting results without touching the committed transcript.
func (a *Accumulator) Pause() error {
	if !a.state.Recording {
		return ErrNotRecording
	}
	if a.state.Paused {
		return ErrAlreadyPaused
	}
	a.state.Paused = true
	a.interim = ""
	a.pending = 0
	return nil
}

// Resume accepts results again. The caller restarts the recognizer, which
// begins a new result run.
func (a *Accumulator) Resume() error {
	if !a.state.Recording {
		return ErrNotRecording
	}
	if !a.state.Paused {
		return ErrNotPaused
	}
	a.state.Paused = false
	a.interim = ""
	a.runFinals = nil
	return nil
}

// Stop ends the session and returns the finalized transcript. When nothing
// was finalized, the transcript text on the display surface is used instead;
// placeholder and error notices never are.
func (a *Accumulator) Stop() (Transcript, error) {
	if !a.state.Recording {
		return Transcript{}, ErrNotRecording
	}
	surface := a.Display()

	a.state = State{}
	a.interim = ""
	a.notice = ""
	a.pending = 0

	t := Transcript{Text: a.trimmed()}
	if t.Text != "" {
		t.Segments = append([]string(nil), a.segments...)
		return t, nil
	}
	if text := strings.TrimSpace(surface.Text()); text != "" {
		t.Text = text
		t.Segments = []string{text}
		t.Fallback = true
	}
	return t, nil
}

func (a *Accumulator) scheduleRestart() *Restart {
	a.generation++
	a.pending = a.generation
	a.stats.Restarts++
	return &Restart{Generation: a.generation, Delay: a.backoff()}
}

// backoff doubles the restart delay for each consecutive failed restart.
func (a *Accumulator) backoff() time.Duration {
	d := a.delay << min(a.failures, 6)
	if d > a.maxDelay {
		d = a.maxDelay
	}
	return d
}

// fail drops the session entirely.
func (a *Accumulator) fail() Display {
	a.state = State{}
	a.started = false
	a.final = ""
	a.segments = nil
	a.interim = ""
	a.notice = NoticeUnsupported
	a.pending = 0
	return a.Display()
}

// committed reports whether the final slot at index was already committed
// with the same text in this run. Recognizers that re-send their whole list
// from index 0 repeat earlier finals verbatim; different text at a reused
// index is new speech.
func (a *Accumulator) committed(index int, text string) bool {
	return index < len(a.runFinals) && a.runFinals[index] == text
}

func (a *Accumulator) remember(index int, text string) {
	for len(a.runFinals) <= index {
		a.runFinals = append(a.runFinals, "")
	}
	a.runFinals[index] = text
	// slots after a rewritten index belong to the new numbering
	a.runFinals = a.runFinals[:index+1]
}

// trimmed drops trailing whole separators and whitespace.
func (a *Accumulator) trimmed() string {
	text := a.final
	for {
		next := strings.TrimRightFunc(strings.TrimSuffix(text, a.sep), unicode.IsSpace)
		if next == text {
			break
		}
		text = next
	}
	return strings.TrimLeftFunc(text, unicode.IsSpace)
}

func startupError(code ErrorCode, msg string) error {
	if msg == "" {
		return fmt.Errorf("%w: %s", ErrStartupUnsupported, code)
	}
	return fmt.Errorf("%w: %s: %s", ErrStartupUnsupported, code, msg)
}

// join appends b to a, inserting sep only when neither side already has
// whitespace or the whole separator at the boundary.
func join(a, b, sep string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	last, _ := utf8.DecodeLastRuneInString(a)
	first, _ := utf8.DecodeRuneInString(b)
	if unicode.IsSpace(last) || unicode.IsSpace(first) || strings.HasSuffix(a, sep) || strings.HasPrefix(b, sep) {
		return a + b
	}
	return a + sep + b
}
