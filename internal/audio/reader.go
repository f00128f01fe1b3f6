package audio

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

const wavHeaderSize = 44

// ReaderSource replays PCM from an io.Reader, such as a WAV file or stdin.
// When realtime is set the chunks are paced at the capture rate.
type ReaderSource struct {
	r        *bufio.Reader
	realtime bool
	header   bool

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
	eof    chan struct{}
	eofSet sync.Once
}

func NewReaderSource(r io.Reader, realtime bool) *ReaderSource {
	return &ReaderSource{
		r:        bufio.NewReaderSize(r, ChunkBytes*4),
		realtime: realtime,
		eof:      make(chan struct{}),
	}
}

// EOF is closed once the reader is exhausted.
func (s *ReaderSource) EOF() <-chan struct{} { return s.eof }

func (s *ReaderSource) Start(onData func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return nil
	}
	if !s.header {
		s.header = true
		if err := s.skipWAVHeader(); err != nil {
			return err
		}
	}
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.feed(onData, s.stopCh, s.done)
	return nil
}

func (s *ReaderSource) skipWAVHeader() error {
	magic, err := s.r.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if bytes.Equal(magic, []byte("RIFF")) {
		if _, err := s.r.Discard(wavHeaderSize); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}
	return nil
}

func (s *ReaderSource) feed(onData func([]byte), stop, done chan struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if s.realtime {
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		tick = t.C
	}

	for {
		if tick != nil {
			select {
			case <-stop:
				return
			case <-tick:
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
		}

		buf := make([]byte, ChunkBytes)
		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			onData(buf[:n-n%BytesPerSample])
		}
		if err != nil {
			s.eofSet.Do(func() { close(s.eof) })
			return
		}
	}
}

func (s *ReaderSource) Stop() {
	s.mu.Lock()
	stop, done := s.stopCh, s.done
	s.stopCh, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
