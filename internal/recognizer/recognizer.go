// Package recognizer adapts speech recognition backends to the event stream
// consumed by transcript.Accumulator.
//
// Every backend reports results browser style: each result event carries the
// full result list of the current run and the index of the first entry that
// changed. A run begins with EventStart and ends with EventEnd, which is
// emitted both when the client stops the run and when the backend drops it.
package recognizer

import (
	"context"
	"errors"

	"github.com/scribe-notes/scribe/internal/transcript"
)

// ErrUnsupported means the backend is unknown or cannot be reached at all.
var ErrUnsupported = errors.New("recognizer unsupported")

// Recognizer is a restartable speech recognition capability.
type Recognizer interface {
	// Start begins a new run. Starting a running recognizer is a no-op.
	Start(ctx context.Context) error
	// Stop ends the current run. The backend follows up with EventEnd.
	Stop() error
	// Events lives as long as the recognizer, across runs. It is closed by
	// Close.
	Events() <-chan transcript.Event
	Close() error
}

const eventBuffer = 64

// emitter is the event channel shared by the backends.
type emitter struct {
	events chan transcript.Event
	done   chan struct{}
}

func newEmitter() emitter {
	return emitter{
		events: make(chan transcript.Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

func (e emitter) emit(ev transcript.Event) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e emitter) Events() <-chan transcript.Event { return e.events }

// run tracks the cumulative result list of one recognizer run.
type run struct {
	results []transcript.Slot
	n       int // committed slots
}

// interim replaces the provisional tail and returns the event to emit.
func (r *run) interim(text string) transcript.Event {
	r.results = append(r.results[:r.n], transcript.Interim(text))
	return r.event()
}

// final commits text as the next slot and returns the event to emit.
func (r *run) final(text string) transcript.Event {
	r.results = append(r.results[:r.n], transcript.Final(text))
	ev := r.event()
	r.n++
	return ev
}

func (r *run) event() transcript.Event {
	window := make([]transcript.Slot, len(r.results))
	copy(window, r.results)
	return transcript.ResultEvent(r.n, window...)
}
