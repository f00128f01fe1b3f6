// Package audio provides 16 kHz mono 16-bit PCM capture sources.
package audio

import "errors"

const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2

	// ChunkBytes is 100ms of audio.
	ChunkBytes = SampleRate * BytesPerSample / 10
)

var ErrNoDevice = errors.New("audio: no capture device")

// Source delivers PCM chunks to onData until Stop. A stopped source may be
// started again. onData must not retain the slice.
type Source interface {
	Start(onData func(pcm []byte)) error
	Stop()
}

// Tee returns a callback that hands each chunk to every non-nil fn in order.
func Tee(fns ...func([]byte)) func([]byte) {
	var live []func([]byte)
	for _, fn := range fns {
		if fn != nil {
			live = append(live, fn)
		}
	}
	return func(pcm []byte) {
		for _, fn := range live {
			fn(pcm)
		}
	}
}
