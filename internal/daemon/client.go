package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// SocketPath returns the speech daemon socket: SCRIBE_SPEECHD_SOCKET, or
// ~/.scribe/speechd.sock.
func SocketPath() string {
	if p := os.Getenv("SCRIBE_SPEECHD_SOCKET"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".scribe", "speechd.sock")
}

// CommandError is a command the daemon refused. Reason is the daemon's error
// string, which for start is a recognition error code such as "not-allowed".
type CommandError struct {
	Cmd    string
	Reason string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s refused: %s", e.Cmd, e.Reason)
}

// Client is one connection to the speech daemon. A connection is used either
// for commands or, after Subscribe, as an event stream.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex

	// event stream state, owned by the ReadEvent caller
	filter []string
	runID  string
}

// Connect dials the daemon Unix socket.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	return &Client{conn: conn, scanner: scanner}, nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SendCommand sends a command and reads one response line.
func (c *Client) SendCommand(cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, fmt.Errorf("marshal command: %w", err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return Response{}, fmt.Errorf("write %s: %w", cmd.Cmd, err)
	}

	line, err := c.next()
	if err != nil {
		return Response{}, fmt.Errorf("read %s response: %w", cmd.Cmd, err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("unmarshal %s response: %w", cmd.Cmd, err)
	}
	return resp, nil
}

// StartRun asks the daemon to begin recognizing and returns the run ID it
// assigned. A refusal is a *CommandError.
func (c *Client) StartRun(locale, device string) (string, error) {
	resp, err := c.SendCommand(Command{Cmd: "start", Locale: locale, Device: device})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", &CommandError{Cmd: "start", Reason: resp.Error}
	}
	return resp.RunID, nil
}

// StopRun ends the current run. The daemon follows up with an end event.
func (c *Client) StopRun() error {
	resp, err := c.SendCommand(Command{Cmd: "stop"})
	if err != nil {
		return err
	}
	if !resp.OK {
		return &CommandError{Cmd: "stop", Reason: resp.Error}
	}
	return nil
}

// Subscribe asks the daemon to stream the given event kinds on this
// connection. An empty list subscribes to every recognition event.
func (c *Client) Subscribe(events ...string) error {
	resp, err := c.SendCommand(Command{Cmd: "subscribe", Events: events})
	if err != nil {
		return err
	}
	if !resp.OK {
		return &CommandError{Cmd: "subscribe", Reason: resp.Error}
	}
	c.filter = events
	return nil
}

// ReadEvent blocks until the next recognition event of the current run.
//
// Event kinds other than start, result, error and end are skipped, as are
// kinds outside the Subscribe filter. A start event opens a run; events
// tagged with any other run ID are leftovers of an earlier run and are
// dropped. Untagged events always pass.
func (c *Client) ReadEvent() (Event, error) {
	for {
		line, err := c.next()
		if err != nil {
			return Event{}, fmt.Errorf("read event: %w", err)
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return Event{}, fmt.Errorf("unmarshal event: %w", err)
		}
		if c.accept(ev) {
			return ev, nil
		}
	}
}

func (c *Client) accept(ev Event) bool {
	switch ev.Event {
	case EventStart, EventResult, EventError, EventEnd:
	default:
		return false
	}
	if len(c.filter) > 0 && !slices.Contains(c.filter, ev.Event) {
		return false
	}
	if ev.Event == EventStart {
		c.runID = ev.RunID
		return true
	}
	if ev.RunID == "" || c.runID == "" {
		return true
	}
	return ev.RunID == c.runID
}

// RunID is the run the event stream is currently following.
func (c *Client) RunID() string { return c.runID }

func (c *Client) next() ([]byte, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("connection closed")
	}
	return c.scanner.Bytes(), nil
}
