package recognizer

import (
	"context"
	"sync"

	"github.com/scribe-notes/scribe/internal/transcript"
)

// Fake replays scripted runs. Each successful Start emits EventStart followed
// by the next script; Stop and Drop emit EventEnd.
type Fake struct {
	emitter

	mu        sync.Mutex
	scripts   [][]transcript.Event
	startErrs []error
	running   bool
	starts    int
	closed    bool
}

func NewFake(scripts ...[]transcript.Event) *Fake {
	return &Fake{emitter: newEmitter(), scripts: scripts}
}

// FailStarts makes the next len(errs) calls to Start return those errors.
func (f *Fake) FailStarts(errs ...error) {
	f.mu.Lock()
	f.startErrs = append(f.startErrs, errs...)
	f.mu.Unlock()
}

// Starts counts successful starts.
func (f *Fake) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *Fake) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *Fake) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}
	if len(f.startErrs) > 0 {
		err := f.startErrs[0]
		f.startErrs = f.startErrs[1:]
		return err
	}
	f.running = true
	f.starts++
	f.emit(transcript.Event{Kind: transcript.EventStart})
	if len(f.scripts) > 0 {
		for _, ev := range f.scripts[0] {
			f.emit(ev)
		}
		f.scripts = f.scripts[1:]
	}
	return nil
}

// Emit injects an event into the current run.
func (f *Fake) Emit(ev transcript.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.emit(ev)
	}
}

// Drop ends the current run as if the backend had disconnected.
func (f *Fake) Drop() {
	f.Stop()
}

func (f *Fake) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return nil
	}
	f.running = false
	f.emit(transcript.Event{Kind: transcript.EventEnd})
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.done)
	close(f.events)
	return nil
}
