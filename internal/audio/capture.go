// Package audio captures microphone input as LINEAR16 chunks.
package audio

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/dazdaz/gemini/internal/audio/wav"
)

// ErrNoMicrophone is returned when no usable input device is present.
var ErrNoMicrophone = errors.New("no microphone input device found")

// Microphone captures mono audio from the best available input device and
// emits little-endian LINEAR16 chunks.
type Microphone struct {
	sampleRate   int
	framesPerBuf int
	excluded     []string
	outCh        chan []byte

	mu      sync.Mutex
	stopped bool
	stream  *portaudio.Stream
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMicrophone initializes portaudio. bufferSize is the number of chunks held
// before new ones are dropped.
func NewMicrophone(sampleRate, bufferSize int, excludedDevices []string) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	return &Microphone{
		sampleRate:   sampleRate,
		framesPerBuf: sampleRate / 10, // 100ms chunks
		excluded:     excludedDevices,
		outCh:        make(chan []byte, bufferSize),
	}, nil
}

// Output returns the channel of captured LINEAR16 chunks.
func (m *Microphone) Output() <-chan []byte { return m.outCh }

// Start opens the preferred input device and begins capture until ctx ends or
// Stop is called. It returns the chosen device name.
func (m *Microphone) Start(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return "", nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return "", err
	}
	dev := pickMicrophone(devices, m.excluded)
	if dev == nil {
		dev, err = portaudio.DefaultInputDevice()
		if err != nil || dev == nil {
			return "", ErrNoMicrophone
		}
	}

	buf := make([]float32, m.framesPerBuf)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(m.sampleRate),
		FramesPerBuffer: m.framesPerBuf,
	}, buf)
	if err != nil {
		return "", err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return "", err
	}

	capCtx, cancel := context.WithCancel(ctx)
	m.stream, m.cancel, m.done = stream, cancel, make(chan struct{})
	go m.read(capCtx, stream, buf, dev.Name, m.done)

	slog.Info("started audio capture", "device", dev.Name, "sample_rate", m.sampleRate)
	return dev.Name, nil
}

func (m *Microphone) read(ctx context.Context, stream *portaudio.Stream, buf []float32, device string, done chan struct{}) {
	defer close(done)
	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			slog.Debug("audio read error", "device", device, "error", err)
			return
		}
		select {
		case m.outCh <- wav.Float32ToPCM16(buf):
		default:
			slog.Debug("audio buffer full, dropping chunk", "device", device)
		}
	}
}

// Stop stops capture and releases portaudio. Later calls are no-ops.
func (m *Microphone) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	if m.cancel != nil {
		m.cancel()
	}
	if m.stream != nil {
		_ = m.stream.Stop()
		<-m.done
		_ = m.stream.Close()
		m.stream = nil
	}
	_ = portaudio.Terminate()
}

// pickMicrophone returns the best user microphone, preferring built-in devices.
// Loopback devices are never chosen.
func pickMicrophone(devices []*portaudio.DeviceInfo, excluded []string) *portaudio.DeviceInfo {
	var best *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev == nil || dev.MaxInputChannels < 1 || isExcluded(dev.Name, excluded) {
			continue
		}
		if classifyDevice(dev.Name) != "user" {
			continue
		}
		if best == nil || preferDevice(dev.Name, best.Name) {
			best = dev
		}
	}
	return best
}

func classifyDevice(name string) string {
	for _, kw := range []string{"blackhole", "vb-cable", "loopback", "monitor", "soundflower"} {
		if containsFold(name, kw) {
			return "system"
		}
	}
	for _, kw := range []string{"microphone", "input", "mic", "built-in"} {
		if containsFold(name, kw) {
			return "user"
		}
	}
	return ""
}

func isExcluded(name string, excluded []string) bool {
	for _, ex := range excluded {
		if containsFold(name, ex) {
			return true
		}
	}
	return false
}

func preferDevice(name, current string) bool {
	for _, p := range []string{"macbook", "built-in"} {
		if containsFold(name, p) && !containsFold(current, p) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
