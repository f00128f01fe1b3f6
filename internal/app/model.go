package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/scribe-notes/scribe/internal/handoff"
	"github.com/scribe-notes/scribe/internal/log"
	"github.com/scribe-notes/scribe/internal/recognizer"
	"github.com/scribe-notes/scribe/internal/recording"
	"github.com/scribe-notes/scribe/internal/transcript"
	"github.com/scribe-notes/scribe/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	startTimeout   = 10 * time.Second
	handoffTimeout = 15 * time.Second
	transientDelay = 5 * time.Second
)

// Options wires the model to its collaborators.
type Options struct {
	Recognizer recognizer.Recognizer
	// Sink receives the artifact of every stopped session. Optional.
	Sink handoff.Sink
	// Archive records session audio. Optional.
	Archive    *recording.Archive
	Transcript transcript.Options

	PatientID string
	Locale    string
	Backend   string
}

// Model is the root bubbletea model for the dictation screen.
type Model struct {
	rec     recognizer.Recognizer
	sink    handoff.Sink
	archive *recording.Archive
	acc     *transcript.Accumulator

	patientID string
	locale    string
	backend   string

	// Session
	sessionID string
	startedAt time.Time
	saving    bool
	quitting  bool

	// UI state
	width            int
	height           int
	transcriptScroll int
	transcriptLive   bool

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string

	now func() time.Time
}

// New creates a new Model with default state.
func New(opts Options) Model {
	return Model{
		rec:            opts.Recognizer,
		sink:           opts.Sink,
		archive:        opts.Archive,
		acc:            transcript.New(opts.Transcript),
		patientID:      strings.TrimSpace(opts.PatientID),
		locale:         opts.Locale,
		backend:        opts.Backend,
		transcriptLive: true,
		statusText:     "Idle",
		now:            time.Now,
	}
}

// Init starts reading recognizer events.
func (m Model) Init() tea.Cmd {
	return readEventCmd(m.rec.Events())
}

// readEventCmd reads the next event from the recognizer.
func readEventCmd(events <-chan transcript.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return RecognizerClosedMsg{}
		}
		return RecognizerEventMsg{Event: ev}
	}
}

// startCmd starts a recognizer run.
func startCmd(rec recognizer.Recognizer) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		return StartResultMsg{Err: rec.Start(ctx)}
	}
}

// stopRecognizerCmd ends the current run without ending the session.
func stopRecognizerCmd(rec recognizer.Recognizer) tea.Cmd {
	return func() tea.Msg {
		if err := rec.Stop(); err != nil {
			log.Warnf("stop recognizer: %v", err)
		}
		return nil
	}
}

// restartCmd waits out the restart delay.
func restartCmd(r transcript.Restart) tea.Cmd {
	return tea.Tick(r.Delay, func(time.Time) tea.Msg {
		return RestartMsg{Generation: r.Generation}
	})
}

// finishCmd stops capture, closes the audio archive and hands the artifact
// to the sink.
func finishCmd(rec recognizer.Recognizer, archive *recording.Archive, sink handoff.Sink, a handoff.Artifact) tea.Cmd {
	return func() tea.Msg {
		if err := rec.Stop(); err != nil {
			log.Warnf("stop recognizer: %v", err)
		}
		if archive != nil {
			path, err := archive.End()
			if err != nil {
				log.Warnf("close audio archive: %v", err)
			}
			a.AudioPath = path
		}
		if strings.TrimSpace(a.Text) == "" {
			return HandoffDoneMsg{Artifact: a, Err: handoff.ErrEmptyTranscript}
		}
		if sink == nil {
			return HandoffDoneMsg{Artifact: a}
		}
		ctx, cancel := context.WithTimeout(context.Background(), handoffTimeout)
		defer cancel()
		return HandoffDoneMsg{Artifact: a, Err: sink.Handoff(ctx, a)}
	}
}

// abortCmd tears down capture for a session that never got going.
func abortCmd(rec recognizer.Recognizer, archive *recording.Archive) tea.Cmd {
	return func() tea.Msg {
		rec.Stop()
		if archive != nil {
			archive.End()
		}
		return nil
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(transientDelay, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case RecognizerEventMsg:
		cmd := m.apply(m.acc.Ingest(msg.Event))
		if m.transcriptLive {
			m.scrollToBottom()
		}
		return m, tea.Batch(cmd, readEventCmd(m.rec.Events()))

	case RecognizerClosedMsg:
		m.statusText = "Recognizer closed"
		return m, nil

	case StartResultMsg:
		if msg.Err == nil {
			return m, nil
		}
		return m, m.apply(m.acc.StartFailed(msg.Err))

	case RestartMsg:
		if !m.acc.RestartDue(msg.Generation) {
			return m, nil
		}
		return m, startCmd(m.rec)

	case HandoffDoneMsg:
		m.saving = false
		switch {
		case errors.Is(msg.Err, handoff.ErrEmptyTranscript):
			m.statusText = "Nothing was transcribed"
		case msg.Err != nil:
			log.Errorf("hand off session %s: %v", msg.Artifact.SessionID, msg.Err)
			m.statusText = "Idle"
			m.errorMessage = msg.Err.Error()
			m.errorTransient = false
		default:
			log.TranscriptText(msg.Artifact.SessionID, msg.Artifact.Body())
			m.statusText = fmt.Sprintf("Saved %d segment(s)", len(msg.Artifact.Segments))
			if msg.Artifact.Fallback {
				m.statusText += " from the live display"
			}
		}
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

// apply turns an accumulator outcome into commands.
func (m *Model) apply(out transcript.Outcome) tea.Cmd {
	var cmds []tea.Cmd
	if out.Err != nil {
		cmds = append(cmds, m.reportError(out.Err))
	}
	if r := out.Restart; r != nil {
		log.Restart(r.Generation, r.Delay)
		cmds = append(cmds, restartCmd(*r))
	}
	return tea.Batch(cmds...)
}

func (m *Model) reportError(err error) tea.Cmd {
	if errors.Is(err, transcript.ErrStartupUnsupported) {
		log.Errorf("session %s: %v", m.sessionID, err)
		m.errorMessage = err.Error()
		m.errorTransient = false
		m.statusText = "Idle"
		return abortCmd(m.rec, m.archive)
	}

	var ce *transcript.CaptureError
	if errors.As(err, &ce) {
		log.TransientError(string(ce.Code), ce.Message)
	}
	m.errorMessage = err.Error()
	m.errorTransient = true
	return clearTransientErrorCmd()
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		if m.acc.State().Recording {
			m.quitting = true
			return m, m.stop()
		}
		if m.saving {
			m.quitting = true
			return m, nil
		}
		return m, tea.Quit

	case KeySpace:
		if m.saving {
			return m, nil
		}
		if m.acc.State().Recording {
			return m, m.stop()
		}
		return m, m.start()

	case KeyPause, KeyPauseUp:
		state := m.acc.State()
		if !state.Recording {
			return m, nil
		}
		if state.Paused {
			if err := m.acc.Resume(); err != nil {
				return m, nil
			}
			m.statusText = "Recording"
			return m, startCmd(m.rec)
		}
		if err := m.acc.Pause(); err != nil {
			return m, nil
		}
		m.statusText = "Paused"
		return m, stopRecognizerCmd(m.rec)

	case KeyUp:
		m.transcriptLive = false
		if m.transcriptScroll > 0 {
			m.transcriptScroll--
		}
		return m, nil

	case KeyDown:
		maxScroll := m.maxTranscriptScroll()
		m.transcriptScroll++
		if m.transcriptScroll >= maxScroll {
			m.transcriptScroll = maxScroll
			m.transcriptLive = true
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) start() tea.Cmd {
	if err := m.acc.Start(); err != nil {
		return nil
	}
	m.sessionID = uuid.NewString()
	m.startedAt = m.now()
	m.errorMessage = ""
	m.errorTransient = false
	m.statusText = "Recording"
	m.transcriptLive = true
	m.transcriptScroll = 0
	log.SessionStart(m.sessionID, m.backend, m.locale)

	if m.archive != nil {
		if err := m.archive.Begin(m.sessionID, m.startedAt); err != nil {
			log.Warnf("audio archive disabled for session %s: %v", m.sessionID, err)
		}
	}
	return startCmd(m.rec)
}

func (m *Model) stop() tea.Cmd {
	t, err := m.acc.Stop()
	if err != nil {
		return nil
	}
	st := m.acc.Stats()
	log.SessionEnd(m.sessionID, st.Results, st.Finals, st.Restarts, st.TransientErrors, t.Fallback)

	a := handoff.Artifact{
		SessionID: m.sessionID,
		PatientID: m.patientID,
		Locale:    m.locale,
		Text:      t.Text,
		Processed: transcript.Normalize(t.Text),
		Segments:  t.Segments,
		Fallback:  t.Fallback,
		StartedAt: m.startedAt,
		EndedAt:   m.now(),
	}
	m.saving = true
	m.statusText = "Saving..."
	return finishCmd(m.rec, m.archive, m.sink, a)
}

func (m *Model) scrollToBottom() {
	m.transcriptScroll = m.maxTranscriptScroll()
}

func (m Model) maxTranscriptScroll() int {
	total := len(m.transcriptLines(m.textWidth()))
	visible := m.transcriptVisibleLines() - 1
	if total <= visible {
		return 0
	}
	return total - visible
}

func (m Model) transcriptVisibleLines() int {
	if m.height == 0 {
		return 20
	}
	// header(1) + status(1) + dividers(2) + error(1) + footer(1) + padding
	reserved := 7
	return max(5, m.height-reserved)
}

func (m Model) textWidth() int {
	if m.width == 0 {
		return 76
	}
	return max(10, m.width-4)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderTranscriptPanel(m.transcriptVisibleLines()))
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	header := ui.TitleStyle.Render("SCRIBE")
	if m.patientID != "" {
		header += ui.DimStyle.Render(" · patient " + m.patientID)
	}
	if m.backend != "" {
		header += ui.DimStyle.Render(" · " + m.backend)
	}
	if m.locale != "" {
		header += ui.DimStyle.Render(" · " + m.locale)
	}
	return header
}

func (m Model) renderStatusBar() string {
	state := m.acc.State()
	var dot string
	switch {
	case state.Paused:
		dot = ui.PausedDotStyle.Render("❚❚ PAUSED")
	case state.Recording:
		dot = ui.RecordingDotStyle.Render("● REC")
	default:
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}

	var counters string
	if state.Recording {
		st := m.acc.Stats()
		counters = ui.CounterStyle.Render(fmt.Sprintf("  segments %d", st.Finals))
		if st.Restarts > 0 {
			counters += ui.CounterStyle.Render(fmt.Sprintf("  restarts %d", st.Restarts))
		}
	}

	status := ui.DimStyle.Render("  " + m.statusText)
	if !state.Recording && strings.HasPrefix(m.statusText, "Saved") {
		status = "  " + ui.SavedStyle.Render(m.statusText)
	}
	return dot + counters + status
}

func (m Model) renderTranscriptPanel(height int) string {
	badge := ui.LiveBadgeStyle.Render(" LIVE")
	if !m.transcriptLive {
		badge = ui.ScrollBadgeStyle.Render(" SCROLL")
	}
	lines := []string{ui.PanelTitleStyle.Render("TRANSCRIPT") + badge}
	contentHeight := height - 1

	display := m.transcriptLines(m.textWidth())
	start := 0
	if m.transcriptLive {
		if len(display) > contentHeight {
			start = len(display) - contentHeight
		}
	} else {
		start = min(m.transcriptScroll, max(0, len(display)-1))
	}
	end := min(start+contentHeight, len(display))
	for i := start; i < end; i++ {
		lines = append(lines, "  "+display[i])
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// transcriptLines wraps the committed text and the interim tail together,
// styling each word by where it came from.
func (m Model) transcriptLines(width int) []string {
	d := m.acc.Display()

	var words []styledWord
	for _, w := range strings.Fields(d.Final) {
		words = append(words, styledWord{text: w, style: ui.FinalTextStyle})
	}
	for _, w := range strings.Fields(d.Interim) {
		words = append(words, styledWord{text: w, style: ui.InterimTextStyle})
	}
	lines := wrapWords(words, width)

	switch {
	case d.Notice != "":
		lines = append(lines, ui.NoticeStyle.Render(d.Notice))
	case len(words) == 0 && !m.acc.State().Recording && !m.saving:
		lines = append(lines, ui.DimStyle.Render("Press Space to start dictating"))
	}
	return lines
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string
	state := m.acc.State()
	if state.Recording {
		parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Stop"))
		if state.Paused {
			parts = append(parts, ui.FooterKeyStyle.Render("p")+ui.FooterDescStyle.Render(" Resume"))
		} else {
			parts = append(parts, ui.FooterKeyStyle.Render("p")+ui.FooterDescStyle.Render(" Pause"))
		}
	} else {
		parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Record"))
	}
	parts = append(parts, ui.FooterKeyStyle.Render("↑↓")+ui.FooterDescStyle.Render(" Scroll"))
	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))
	return strings.Join(parts, "  ")
}

// Helpers

type styledWord struct {
	text  string
	style lipgloss.Style
}

// wrapWords lays words out greedily in lines of at most width cells.
func wrapWords(words []styledWord, width int) []string {
	var lines []string
	var line []string
	used := 0
	for _, w := range words {
		n := lipgloss.Width(w.text)
		if used > 0 && used+1+n > width {
			lines = append(lines, strings.Join(line, " "))
			line, used = nil, 0
		}
		if used > 0 {
			used++
		}
		line = append(line, w.style.Render(w.text))
		used += n
	}
	if len(line) > 0 {
		lines = append(lines, strings.Join(line, " "))
	}
	return lines
}
