package audio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// Microphone captures from a miniaudio input device.
type Microphone struct {
	device string

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	dev    *malgo.Device
	onData func([]byte)
}

// NewMicrophone returns a source for the named device. An empty name selects
// the system default; otherwise the first device whose name contains it is
// used.
func NewMicrophone(device string) *Microphone {
	return &Microphone{device: device}
}

// Devices lists the capture device names.
func Devices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name())
	}
	return names, nil
}

func (m *Microphone) Start(onData func([]byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dev != nil {
		m.onData = onData
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = Channels
	cfg.SampleRate = SampleRate

	if m.device != "" {
		devices, err := ctx.Devices(malgo.Capture)
		if err != nil {
			m.free(ctx)
			return fmt.Errorf("list capture devices: %w", err)
		}
		found := false
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name()), strings.ToLower(m.device)) {
				cfg.Capture.DeviceID = d.ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			m.free(ctx)
			return fmt.Errorf("%w: %q", ErrNoDevice, m.device)
		}
	}

	m.onData = onData
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.mu.Lock()
			fn := m.onData
			m.mu.Unlock()
			if fn == nil || len(input) == 0 {
				return
			}
			// miniaudio reuses its buffer
			chunk := make([]byte, len(input))
			copy(chunk, input)
			fn(chunk)
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		m.free(ctx)
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		m.free(ctx)
		return fmt.Errorf("start capture device: %w", err)
	}

	m.ctx = ctx
	m.dev = dev
	return nil
}

func (m *Microphone) Stop() {
	m.mu.Lock()
	dev, ctx := m.dev, m.ctx
	m.dev, m.ctx, m.onData = nil, nil, nil
	m.mu.Unlock()

	if dev != nil {
		dev.Stop()
		dev.Uninit()
	}
	if ctx != nil {
		m.free(ctx)
	}
}

func (m *Microphone) free(ctx *malgo.AllocatedContext) {
	ctx.Uninit()
	ctx.Free()
}
