package recognizer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/scribe-notes/scribe/internal/daemon"
	"github.com/scribe-notes/scribe/internal/transcript"
)

// mockSpeechd is a minimal speech daemon: "start" opens a run and replays
// the scripted events to subscribers, "stop" ends it.
type mockSpeechd struct {
	t        *testing.T
	ln       net.Listener
	script   []daemon.Event
	startErr string

	mu   sync.Mutex
	subs []net.Conn
	cmds []daemon.Command
}

func startSpeechd(t *testing.T, startErr string, script []daemon.Event) (*mockSpeechd, string) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "speechd.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	m := &mockSpeechd{t: t, ln: ln, script: script, startErr: startErr}
	go m.accept()
	t.Cleanup(func() { ln.Close() })
	return m, sockPath
}

func (m *mockSpeechd) accept() {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			return
		}
		go m.serve(conn)
	}
}

func (m *mockSpeechd) write(conn net.Conn, v any) {
	data, _ := json.Marshal(v)
	conn.Write(append(data, '\n'))
}

func (m *mockSpeechd) broadcast(ev daemon.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.subs {
		m.write(c, ev)
	}
}

func (m *mockSpeechd) serve(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var cmd daemon.Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			return
		}
		m.mu.Lock()
		m.cmds = append(m.cmds, cmd)
		m.mu.Unlock()

		switch cmd.Cmd {
		case "subscribe":
			m.mu.Lock()
			m.subs = append(m.subs, conn)
			m.mu.Unlock()
			m.write(conn, daemon.Response{OK: true})
		case "start":
			if m.startErr != "" {
				m.write(conn, daemon.Response{OK: false, Error: m.startErr})
				continue
			}
			m.write(conn, daemon.Response{OK: true, RunID: "run-1"})
			m.broadcast(daemon.Event{Event: daemon.EventStart, RunID: "run-1"})
			for _, ev := range m.script {
				m.broadcast(ev)
			}
		case "stop":
			m.write(conn, daemon.Response{OK: true})
			m.broadcast(daemon.Event{Event: daemon.EventEnd})
		default:
			m.write(conn, daemon.Response{OK: true})
		}
	}
}

// dropSubscribers closes every event connection.
func (m *mockSpeechd) dropSubscribers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.subs {
		c.Close()
	}
	m.subs = nil
}

func (m *mockSpeechd) commands() []daemon.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]daemon.Command(nil), m.cmds...)
}

func TestDaemonRun(t *testing.T) {
	m, sock := startSpeechd(t, "", []daemon.Event{
		{Event: daemon.EventResult, ResultIndex: daemon.IntPtr(0), Results: []daemon.Result{{Transcript: "hel"}}},
		{Event: daemon.EventResult, ResultIndex: daemon.IntPtr(0), Results: []daemon.Result{{Transcript: "hello ", IsFinal: true}}},
		{Event: daemon.EventError, Error: "no-speech"},
	})

	d, err := NewDaemon(sock, "en-US", "")
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if ev := next(t, d.Events()); ev.Kind != transcript.EventStart {
		t.Errorf("event 1 = %v, want start", ev.Kind)
	}
	ev := next(t, d.Events())
	if ev.Kind != transcript.EventResult || ev.Results[0].Text != "hel" || ev.Results[0].Final {
		t.Errorf("event 2 = %+v", ev)
	}
	ev = next(t, d.Events())
	if !ev.Results[0].Final || ev.Results[0].Text != "hello " {
		t.Errorf("event 3 = %+v", ev)
	}
	ev = next(t, d.Events())
	if ev.Kind != transcript.EventError || ev.Code != transcript.ErrorNoSpeech {
		t.Errorf("event 4 = %+v", ev)
	}

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if ev := next(t, d.Events()); ev.Kind != transcript.EventEnd {
		t.Errorf("after stop = %v, want end", ev.Kind)
	}

	var sawLocale bool
	for _, c := range m.commands() {
		if c.Cmd == "start" && c.Locale == "en-US" {
			sawLocale = true
		}
	}
	if !sawLocale {
		t.Errorf("start command without locale: %+v", m.commands())
	}
}

func TestDaemonMissingSocketUnsupported(t *testing.T) {
	_, err := NewDaemon(filepath.Join(t.TempDir(), "missing.sock"), "en-US", "")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("NewDaemon() = %v, want ErrUnsupported", err)
	}
}

func TestDaemonFatalStartRefusal(t *testing.T) {
	_, sock := startSpeechd(t, "not-allowed", nil)

	d, err := NewDaemon(sock, "en-US", "")
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	defer d.Close()

	err = d.Start(context.Background())
	var ce *transcript.CaptureError
	if !errors.As(err, &ce) || ce.Code != transcript.ErrorNotAllowed {
		t.Errorf("Start() = %v, want not-allowed capture error", err)
	}
}

func TestDaemonStartRefusalKeepsReason(t *testing.T) {
	_, sock := startSpeechd(t, "busy", nil)

	d, err := NewDaemon(sock, "en-US", "")
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	defer d.Close()

	err = d.Start(context.Background())
	var refused *daemon.CommandError
	if !errors.As(err, &refused) || refused.Reason != "busy" {
		t.Errorf("Start() = %v, want busy refusal", err)
	}
}

func TestDaemonLostStreamEndsRun(t *testing.T) {
	m, sock := startSpeechd(t, "", nil)

	d, err := NewDaemon(sock, "en-US", "")
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	next(t, d.Events()) // start

	m.dropSubscribers()

	ev := next(t, d.Events())
	if ev.Kind != transcript.EventError || ev.Code != transcript.ErrorNetwork {
		t.Errorf("event = %+v, want network error", ev)
	}
	if ev := next(t, d.Events()); ev.Kind != transcript.EventEnd {
		t.Errorf("event = %v, want end", ev.Kind)
	}

	// a restart resubscribes
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if ev := next(t, d.Events()); ev.Kind != transcript.EventStart {
		t.Errorf("after restart = %v, want start", ev.Kind)
	}
}

func TestConvertUnknownEvent(t *testing.T) {
	if _, ok := convert(daemon.Event{Event: "level"}); ok {
		t.Error("unknown event kinds should be skipped")
	}
	ev, ok := convert(daemon.Event{Event: daemon.EventResult, Results: []daemon.Result{{Transcript: "x"}}})
	if !ok || ev.ResultIndex != 0 {
		t.Errorf("missing resultIndex should default to 0, got %+v", ev)
	}
}
