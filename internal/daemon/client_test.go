package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
)

// startMockDaemon creates a Unix socket that accepts one connection,
// reads a command, and writes back a canned response.
func startMockDaemon(t *testing.T, response Response) (string, <-chan Command, func()) {
	t.Helper()

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	received := make(chan Command, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		line, err := r.ReadBytes('\n')
		if err != nil {
			return
		}
		var cmd Command
		if json.Unmarshal(line, &cmd) == nil {
			received <- cmd
		}

		data, _ := json.Marshal(response)
		data = append(data, '\n')
		conn.Write(data)
	}()

	return sockPath, received, func() {
		ln.Close()
		os.Remove(sockPath)
	}
}

func TestClientSendCommand(t *testing.T) {
	recording := true
	resp := Response{
		OK:        true,
		RunID:     "run-1",
		Recording: &recording,
	}

	sockPath, received, cleanup := startMockDaemon(t, resp)
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	got, err := client.SendCommand(Command{Cmd: "start", Locale: "en-US"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if !got.OK {
		t.Error("ok = false, want true")
	}
	if got.RunID != "run-1" {
		t.Errorf("runId = %q, want %q", got.RunID, "run-1")
	}

	cmd := <-received
	if cmd.Cmd != "start" || cmd.Locale != "en-US" {
		t.Errorf("daemon received %+v", cmd)
	}
}

func TestClientConnectFailure(t *testing.T) {
	_, err := Connect("/nonexistent/path/speechd.sock")
	if err == nil {
		t.Error("expected error connecting to nonexistent socket")
	}
}

// startMockEventStream creates a daemon that sends a subscribe response
// then streams events.
func startMockEventStream(t *testing.T, events []Event) (string, func()) {
	t.Helper()

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Read subscribe command
		if _, err := bufio.NewReader(conn).ReadBytes('\n'); err != nil {
			return
		}

		resp, _ := json.Marshal(Response{OK: true})
		conn.Write(append(resp, '\n'))

		for _, ev := range events {
			data, _ := json.Marshal(ev)
			conn.Write(append(data, '\n'))
		}
	}()

	return sockPath, func() {
		ln.Close()
		os.Remove(sockPath)
	}
}

func TestClientReadEvents(t *testing.T) {
	events := []Event{
		{Event: EventStart, RunID: "run-1"},
		{Event: EventResult, ResultIndex: IntPtr(0), Results: []Result{{Transcript: "hello", IsFinal: true}}},
		{Event: EventEnd},
	}

	sockPath, cleanup := startMockEventStream(t, events)
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev1, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event 1: %v", err)
	}
	if ev1.Event != EventStart || ev1.RunID != "run-1" {
		t.Errorf("event1 = %+v", ev1)
	}

	ev2, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event 2: %v", err)
	}
	if ev2.Event != EventResult || len(ev2.Results) != 1 || ev2.Results[0].Transcript != "hello" {
		t.Errorf("event2 = %+v", ev2)
	}

	ev3, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event 3: %v", err)
	}
	if ev3.Event != EventEnd {
		t.Errorf("event3 = %+v", ev3)
	}

	if _, err := client.ReadEvent(); err == nil {
		t.Error("expected error after stream closed")
	}
}

func TestClientSubscribeRejected(t *testing.T) {
	sockPath, _, cleanup := startMockDaemon(t, Response{OK: false, Error: "busy"})
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Subscribe(EventResult); err == nil {
		t.Error("expected subscribe error when daemon refuses")
	}
}

func TestSocketPathEnvOverride(t *testing.T) {
	t.Setenv("SCRIBE_SPEECHD_SOCKET", "/tmp/custom.sock")
	if got := SocketPath(); got != "/tmp/custom.sock" {
		t.Errorf("SocketPath() = %q, want %q", got, "/tmp/custom.sock")
	}
}

func TestClientReadEventFollowsCurrentRun(t *testing.T) {
	events := []Event{
		{Event: "level"},
		{Event: EventStart, RunID: "run-2"},
		{Event: EventEnd, RunID: "run-1"}, // late end of the previous run
		{Event: EventResult, RunID: "run-2", ResultIndex: IntPtr(0), Results: []Result{{Transcript: "kept", IsFinal: true}}},
		{Event: EventError, Error: "no-speech"},
		{Event: EventEnd, RunID: "run-2"},
	}

	sockPath, cleanup := startMockEventStream(t, events)
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if err := client.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	want := []string{EventStart, EventResult, EventError, EventEnd}
	for i, kind := range want {
		ev, err := client.ReadEvent()
		if err != nil {
			t.Fatalf("read event %d: %v", i, err)
		}
		if ev.Event != kind {
			t.Errorf("event %d = %q (run %q), want %q", i, ev.Event, ev.RunID, kind)
		}
	}
	if client.RunID() != "run-2" {
		t.Errorf("RunID = %q, want run-2", client.RunID())
	}
}

func TestClientReadEventAppliesFilter(t *testing.T) {
	events := []Event{
		{Event: EventStart, RunID: "run-1"},
		{Event: EventResult, ResultIndex: IntPtr(0), Results: []Result{{Transcript: "x"}}},
		{Event: EventEnd},
	}
	sockPath, cleanup := startMockEventStream(t, events)
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if err := client.Subscribe(EventEnd); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Event != EventEnd {
		t.Errorf("event = %q, want only end events", ev.Event)
	}
}

func TestClientStartRunRefused(t *testing.T) {
	sockPath, received, cleanup := startMockDaemon(t, Response{OK: false, Error: "not-allowed"})
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	_, err = client.StartRun("en-US", "Built-in Microphone")
	var refused *CommandError
	if !errors.As(err, &refused) {
		t.Fatalf("err = %v, want *CommandError", err)
	}
	if refused.Cmd != "start" || refused.Reason != "not-allowed" {
		t.Errorf("refused = %+v", refused)
	}
	cmd := <-received
	if cmd.Locale != "en-US" || cmd.Device != "Built-in Microphone" {
		t.Errorf("command = %+v", cmd)
	}
}
