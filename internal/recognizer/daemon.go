package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/scribe-notes/scribe/internal/daemon"
	"github.com/scribe-notes/scribe/internal/log"
	"github.com/scribe-notes/scribe/internal/transcript"
)

// Daemon drives a local speech daemon. Commands travel on one connection and
// events arrive on a second, subscribed connection.
type Daemon struct {
	emitter
	socket string
	locale string
	device string

	mu      sync.Mutex
	cmd     *daemon.Client
	ev      *daemon.Client
	running bool
	closed  bool
	wg      sync.WaitGroup
}

// NewDaemon connects to the daemon at socket. A missing socket is reported as
// ErrUnsupported.
func NewDaemon(socket, locale, device string) (*Daemon, error) {
	if _, err := os.Stat(socket); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no speech daemon at %s", ErrUnsupported, socket)
	}
	d := &Daemon{
		emitter: newEmitter(),
		socket:  socket,
		locale:  locale,
		device:  device,
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.connect(); err != nil {
		return nil, err
	}
	return d, nil
}

// connect (re)establishes both connections. Callers hold d.mu.
func (d *Daemon) connect() error {
	if d.cmd == nil {
		cmd, err := daemon.Connect(d.socket)
		if err != nil {
			return err
		}
		d.cmd = cmd
	}
	if d.ev == nil {
		ev, err := daemon.Connect(d.socket)
		if err != nil {
			return err
		}
		if err := ev.Subscribe(); err != nil {
			ev.Close()
			return err
		}
		d.ev = ev
		d.wg.Add(1)
		go d.readEvents(ev)
	}
	return nil
}

func (d *Daemon) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("recognizer closed")
	}
	if d.running {
		return nil
	}
	if err := d.connect(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	runID, err := d.cmd.StartRun(d.locale, d.device)
	var refused *daemon.CommandError
	if errors.As(err, &refused) {
		return startError(refused)
	}
	if err != nil {
		d.dropCommand()
		return fmt.Errorf("start: %w", err)
	}
	log.Info("speech daemon run " + runID + " started")
	d.running = true
	return nil
}

// startError maps a refused start onto the capture error codes so fatal
// refusals end the session before it goes live.
func startError(refused *daemon.CommandError) error {
	code := transcript.ErrorCode(refused.Reason)
	if code.Fatal() {
		return &transcript.CaptureError{Code: code}
	}
	return refused
}

func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running || d.cmd == nil {
		return nil
	}
	err := d.cmd.StopRun()
	var refused *daemon.CommandError
	if err != nil && !errors.As(err, &refused) {
		d.dropCommand()
		return fmt.Errorf("stop: %w", err)
	}
	return err
}

func (d *Daemon) dropCommand() {
	if d.cmd != nil {
		d.cmd.Close()
		d.cmd = nil
	}
}

func (d *Daemon) readEvents(c *daemon.Client) {
	defer d.wg.Done()
	for {
		ev, err := c.ReadEvent()
		if err != nil {
			d.mu.Lock()
			closed, wasRunning := d.closed, d.running
			d.running = false
			if d.ev == c {
				d.ev.Close()
				d.ev = nil
			}
			d.mu.Unlock()
			if closed {
				return
			}
			log.Warnf("speech daemon event stream lost: %v", err)
			d.emit(transcript.ErrorEvent(transcript.ErrorNetwork, err.Error()))
			if wasRunning {
				d.emit(transcript.Event{Kind: transcript.EventEnd})
			}
			return
		}

		te, ok := convert(ev)
		if !ok {
			continue
		}
		if te.Kind == transcript.EventEnd {
			d.mu.Lock()
			d.running = false
			d.mu.Unlock()
		}
		d.emit(te)
	}
}

// convert maps a daemon event onto a transcript event.
func convert(ev daemon.Event) (transcript.Event, bool) {
	switch ev.Event {
	case daemon.EventStart:
		return transcript.Event{Kind: transcript.EventStart}, true
	case daemon.EventEnd:
		return transcript.Event{Kind: transcript.EventEnd}, true
	case daemon.EventError:
		return transcript.ErrorEvent(transcript.ErrorCode(ev.Error), ev.Message), true
	case daemon.EventResult:
		slots := make([]transcript.Slot, len(ev.Results))
		for i, r := range ev.Results {
			slots[i] = transcript.Slot{Text: r.Transcript, Final: r.IsFinal}
		}
		index := 0
		if ev.ResultIndex != nil {
			index = *ev.ResultIndex
		}
		return transcript.ResultEvent(index, slots...), true
	}
	return transcript.Event{}, false
}

func (d *Daemon) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.done)
	var errs []error
	if d.cmd != nil {
		if d.running {
			d.cmd.StopRun()
		}
		errs = append(errs, d.cmd.Close())
		d.cmd = nil
	}
	if d.ev != nil {
		errs = append(errs, d.ev.Close())
		d.ev = nil
	}
	d.mu.Unlock()

	d.wg.Wait()
	close(d.events)
	return errors.Join(errs...)
}
