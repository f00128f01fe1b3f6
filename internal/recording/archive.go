package recording

import (
	"sync"
	"time"
)

// Archive hands the capture tap to whichever session is recording. Audio
// written between sessions is dropped.
type Archive struct {
	dir string

	mu  sync.Mutex
	cur *Recorder
}

func NewArchive(dir string) *Archive {
	return &Archive{dir: dir}
}

// Begin opens the recorder for a new session, closing any previous one.
func (a *Archive) Begin(sessionID string, start time.Time) error {
	rec, err := New(a.dir, sessionID, start)
	if err != nil {
		return err
	}
	a.mu.Lock()
	prev := a.cur
	a.cur = rec
	a.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return nil
}

// Write is the capture tap.
func (a *Archive) Write(pcm []byte) {
	a.mu.Lock()
	rec := a.cur
	a.mu.Unlock()
	if rec != nil {
		rec.Write(pcm)
	}
}

// End finalizes the current session and returns its file, or "" when nothing
// was recorded.
func (a *Archive) End() (string, error) {
	a.mu.Lock()
	rec := a.cur
	a.cur = nil
	a.mu.Unlock()
	if rec == nil {
		return "", nil
	}
	return rec.Close()
}
