// Package recording archives the audio of a dictation session as FLAC.
package recording

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"github.com/scribe-notes/scribe/internal/audio"
)

const (
	bitsPerSample = 16
	blockSize     = 4096
)

// Recorder encodes PCM chunks into <dir>/<start>_<session>.flac as they
// arrive. Write is safe to call from the capture thread.
type Recorder struct {
	path string

	mu      sync.Mutex
	file    *os.File
	enc     *flac.Encoder
	pending []int16
	carry   []byte
	samples uint64
	err     error
	closed  bool
}

// New creates the archive file and writes the FLAC header.
func New(dir, sessionID string, start time.Time) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.flac", start.UTC().Format("20060102T150405Z"), sessionID)
	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  blockSize,
		BlockSizeMax:  blockSize,
		SampleRate:    audio.SampleRate,
		NChannels:     audio.Channels,
		BitsPerSample: bitsPerSample,
	}
	enc, err := flac.NewEncoder(file, info)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("create flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	return &Recorder{path: path, file: file, enc: enc}, nil
}

// Path is where the archive is written.
func (r *Recorder) Path() string { return r.path }

// Samples returns the number of samples accepted so far.
func (r *Recorder) Samples() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// Write appends little-endian 16-bit PCM. Encoding errors are sticky and
// reported by Close.
func (r *Recorder) Write(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.err != nil {
		return
	}

	if len(r.carry) > 0 {
		pcm = append(r.carry, pcm...)
		r.carry = nil
	}
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		r.pending = append(r.pending, int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	if len(pcm)%2 == 1 {
		r.carry = []byte{pcm[len(pcm)-1]}
	}
	r.samples += uint64(n)

	for len(r.pending) >= blockSize {
		if err := r.encode(r.pending[:blockSize]); err != nil {
			r.err = err
			return
		}
		r.pending = append(r.pending[:0], r.pending[blockSize:]...)
	}
}

func (r *Recorder) encode(block []int16) error {
	samples := make([]int32, len(block))
	for i, s := range block {
		samples[i] = int32(s)
	}
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    audio.SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: bitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(block),
		}},
	}
	if err := r.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("write flac frame: %w", err)
	}
	return nil
}

// Close flushes the last partial block and finalizes the file. An archive
// with no audio is removed and Close returns an empty path.
func (r *Recorder) Close() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.pathIfKept(), r.err
	}
	r.closed = true

	if r.err == nil && len(r.pending) > 0 {
		r.err = r.encode(r.pending)
		r.pending = nil
	}
	if err := r.enc.Close(); err != nil && r.err == nil {
		r.err = fmt.Errorf("close flac encoder: %w", err)
	}
	// the encoder closes writers that implement io.Closer
	if err := r.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) && r.err == nil {
		r.err = fmt.Errorf("close recording: %w", err)
	}
	if r.samples == 0 {
		os.Remove(r.path)
	}
	return r.pathIfKept(), r.err
}

func (r *Recorder) pathIfKept() string {
	if r.samples == 0 {
		return ""
	}
	return r.path
}
