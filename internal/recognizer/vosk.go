package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scribe-notes/scribe/internal/audio"
	"github.com/scribe-notes/scribe/internal/log"
	"github.com/scribe-notes/scribe/internal/transcript"
)

// VoskConfig configures a Vosk recognizer.
type VoskConfig struct {
	ServerURL  string
	SampleRate int
	// SilenceTimeout ends a run with no-speech when nothing was recognized
	// for this long. Zero disables it.
	SilenceTimeout time.Duration
	// Tap, when set, receives every audio chunk sent to the server.
	Tap func([]byte)
}

type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

// Vosk streams audio from a Source to a Vosk-compatible WebSocket server.
type Vosk struct {
	emitter
	cfg    VoskConfig
	src    audio.Source
	dialer *websocket.Dialer

	mu     sync.Mutex
	cur    *voskRun
	closed bool
	wg     sync.WaitGroup
}

// voskRun is one WebSocket session.
type voskRun struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	heard   chan struct{}
	ending  atomic.Bool
}

func NewVosk(cfg VoskConfig, src audio.Source) (*Vosk, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("%w: vosk server url is empty", ErrUnsupported)
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.SampleRate
	}
	return &Vosk{
		emitter: newEmitter(),
		cfg:     cfg,
		src:     src,
		dialer:  &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
	}, nil
}

func (v *Vosk) Start(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return errors.New("recognizer closed")
	}
	if v.cur != nil {
		return nil
	}

	conn, _, err := v.dialer.DialContext(ctx, v.cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("connect to vosk server: %w", err)
	}
	config := map[string]any{"config": map[string]any{"sample_rate": v.cfg.SampleRate}}
	if err := conn.WriteJSON(config); err != nil {
		conn.Close()
		return fmt.Errorf("configure vosk: %w", err)
	}

	r := &voskRun{
		conn:  conn,
		done:  make(chan struct{}),
		heard: make(chan struct{}, 1),
	}
	if err := v.src.Start(audio.Tee(v.cfg.Tap, r.send)); err != nil {
		conn.Close()
		return &transcript.CaptureError{Code: transcript.ErrorAudioCapture, Message: err.Error()}
	}

	v.cur = r
	v.emit(transcript.Event{Kind: transcript.EventStart})

	v.wg.Add(1)
	go v.readResults(r)
	if v.cfg.SilenceTimeout > 0 {
		v.wg.Add(1)
		go v.watchSilence(r)
	}
	return nil
}

func (r *voskRun) send(pcm []byte) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil && !r.ending.Load() {
		log.Warnf("send audio to vosk: %v", err)
	}
}

// finish asks the server for its last result and closes the stream.
func (r *voskRun) finish() {
	if r.ending.Swap(true) {
		return
	}
	r.writeMu.Lock()
	err := r.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`))
	if err == nil {
		err = r.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	r.writeMu.Unlock()
	if err != nil {
		r.conn.Close()
	}
}

func (v *Vosk) readResults(r *voskRun) {
	defer v.wg.Done()
	defer func() {
		r.ending.Store(true)
		v.src.Stop()
		v.mu.Lock()
		if v.cur == r {
			v.cur = nil
		}
		v.mu.Unlock()
		r.conn.Close()
		v.emit(transcript.Event{Kind: transcript.EventEnd})
		close(r.done)
	}()

	var results run
	for {
		_, message, err := r.conn.ReadMessage()
		if err != nil {
			if !r.ending.Load() && !errors.Is(err, net.ErrClosed) &&
				!websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				v.emit(transcript.ErrorEvent(transcript.ErrorNetwork, err.Error()))
			}
			return
		}

		var res voskResult
		if err := json.Unmarshal(message, &res); err != nil {
			log.Warnf("parse vosk result: %v", err)
			continue
		}

		switch {
		case strings.TrimSpace(res.Text) != "":
			notify(r.heard)
			v.emit(results.final(res.Text))
		case strings.TrimSpace(res.Partial) != "":
			notify(r.heard)
			v.emit(results.interim(res.Partial))
		}
	}
}

func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// watchSilence ends the run with no-speech when nothing is recognized for
// SilenceTimeout.
func (v *Vosk) watchSilence(r *voskRun) {
	defer v.wg.Done()
	timer := time.NewTimer(v.cfg.SilenceTimeout)
	defer timer.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-r.heard:
			timer.Reset(v.cfg.SilenceTimeout)
		case <-timer.C:
			v.emit(transcript.ErrorEvent(transcript.ErrorNoSpeech, ""))
			v.src.Stop()
			r.finish()
			return
		}
	}
}

func (v *Vosk) Stop() error {
	v.mu.Lock()
	r := v.cur
	v.mu.Unlock()
	if r == nil {
		return nil
	}

	v.src.Stop()
	r.finish()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		r.conn.Close()
		<-r.done
	}
	return nil
}

func (v *Vosk) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()

	err := v.Stop()
	close(v.done)
	v.wg.Wait()
	close(v.events)
	return err
}
