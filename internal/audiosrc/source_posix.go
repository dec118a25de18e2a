//go:build !windows

package audiosrc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/wktkow/vis-capture/internal/dsp"
)

// Init initializes the PortAudio host API. Must be called once before any
// PosixSource is opened, and Shutdown once at process exit.
func Init() error { return portaudio.Initialize() }

// Shutdown releases the PortAudio host API.
func Shutdown() error { return portaudio.Terminate() }

// PosixSource captures the PulseAudio/PipeWire "monitor of sink" loopback
// endpoint (or any other input device the caller names) via PortAudio,
// grounded on the teacher's client/audio.go stream-open/read pattern.
type PosixSource struct {
	mu       sync.Mutex
	stream   *portaudio.Stream
	buf      []float32
	channels int
	name     string
}

// Open acquires a capture stream for name (or the platform default when
// name is "" or DefaultMonitorSentinel).
func Open(name string) (*PosixSource, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	dev, err := resolveDevice(devices, name)
	if err != nil {
		return nil, err
	}

	channels := dev.MaxInputChannels
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		channels = 2
	}

	buf := make([]float32, dsp.FrameSize*channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      dsp.SampleRate,
		FramesPerBuffer: dsp.FrameSize,
	}

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	return &PosixSource{stream: stream, buf: buf, channels: channels, name: dev.Name}, nil
}

func resolveDevice(devices []*portaudio.DeviceInfo, name string) (*portaudio.DeviceInfo, error) {
	if name == "" || name == DefaultMonitorSentinel {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return dev, nil
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, ErrSourceUnavailable
}

// ReadFrame blocks until one PortAudio buffer is captured, downmixing to
// mono float32.
func (s *PosixSource) ReadFrame(out []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stream.Read(); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceLost, err)
	}
	downmixInterleaved(s.buf, s.channels, out)
	return nil
}

// Flush drains a couple of buffered reads so the next ReadFrame reflects
// audio captured after this call.
func (s *PosixSource) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < 2; i++ {
		_ = s.stream.Read()
	}
}

// Enumerate lists PulseAudio/PipeWire "monitor of sink" input devices,
// identified as input devices whose name contains "monitor"
// (case-insensitive). When none match, it returns the default input device
// as a single entry, which need not be a monitor. PortAudio's device API does not expose PulseAudio's richer
// human-readable sink descriptions, so Desc is a best-effort humanization
// of the raw device name rather than the exact string PulseAudio would
// report (a direct libpulse binding would be needed for full fidelity;
// none is present anywhere in the reference pack).
func (s *PosixSource) Enumerate() []Descriptor {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil
	}
	var out []Descriptor
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), "monitor") {
			out = append(out, Descriptor{Name: d.Name, Desc: humanizeName(d.Name)})
		}
	}
	if len(out) == 0 {
		if dev, err := portaudio.DefaultInputDevice(); err == nil {
			out = append(out, Descriptor{Name: dev.Name, Desc: "Default Audio Output"})
		}
	}
	return out
}

func humanizeName(name string) string {
	n := strings.TrimSuffix(name, ".monitor")
	n = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(n)
	return strings.TrimSpace(n)
}

// Close stops and releases the PortAudio stream.
func (s *PosixSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.stream.Stop()
	return s.stream.Close()
}
