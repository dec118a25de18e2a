//go:build windows

package audiosrc

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"
)

// Init performs the process-wide COM initialization WASAPI capture needs.
func Init() error {
	return ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED)
}

// Shutdown releases the COM apartment.
func Shutdown() error {
	ole.CoUninitialize()
	return nil
}

// WASAPISource captures the default render endpoint in shared-mode loopback,
// grounded on pozitronik-steelclock-go's AudioCaptureWCA (the only concrete
// IMMDeviceEnumerator/IAudioClient loopback implementation in the reference
// pack). Windows has no PulseAudio-style per-sink monitor enumeration, so
// only the default render device is ever exposed — SET_SOURCE is accepted
// but has no effect on this platform, matching spec.md's Windows note.
type WASAPISource struct {
	mu            sync.Mutex
	device        *wca.IMMDevice
	audioClient   *wca.IAudioClient
	captureClient *wca.IAudioCaptureClient
	waveFormat    *wca.WAVEFORMATEX
	channels      int
	carry         []float32
}

// Open acquires shared-mode loopback capture on the default render device.
// name is accepted for interface symmetry with the posix implementation and
// otherwise ignored.
func Open(name string) (*WASAPISource, error) {
	var enumerator *wca.IMMDeviceEnumerator
	if err := wca.CoCreateInstance(
		wca.CLSID_MMDeviceEnumerator,
		0,
		wca.CLSCTX_ALL,
		wca.IID_IMMDeviceEnumerator,
		&enumerator,
	); err != nil {
		return nil, fmt.Errorf("%w: create device enumerator: %v", ErrSourceUnavailable, err)
	}
	defer enumerator.Release()

	var device *wca.IMMDevice
	if err := enumerator.GetDefaultAudioEndpoint(wca.ERender, wca.EConsole, &device); err != nil {
		return nil, fmt.Errorf("%w: default render endpoint: %v", ErrSourceUnavailable, err)
	}

	var audioClient *wca.IAudioClient
	if err := device.Activate(wca.IID_IAudioClient, wca.CLSCTX_ALL, nil, &audioClient); err != nil {
		device.Release()
		return nil, fmt.Errorf("%w: activate audio client: %v", ErrSourceUnavailable, err)
	}

	var waveFormat *wca.WAVEFORMATEX
	if err := audioClient.GetMixFormat(&waveFormat); err != nil {
		audioClient.Release()
		device.Release()
		return nil, fmt.Errorf("%w: get mix format: %v", ErrSourceUnavailable, err)
	}

	const bufferDuration = wca.REFERENCE_TIME(10000000) // 1s, in 100ns units
	if err := audioClient.Initialize(
		wca.AUDCLNT_SHAREMODE_SHARED,
		wca.AUDCLNT_STREAMFLAGS_LOOPBACK,
		bufferDuration,
		0,
		waveFormat,
		nil,
	); err != nil {
		audioClient.Release()
		device.Release()
		return nil, fmt.Errorf("%w: initialize loopback: %v", ErrSourceUnavailable, err)
	}

	var captureClient *wca.IAudioCaptureClient
	if err := audioClient.GetService(wca.IID_IAudioCaptureClient, &captureClient); err != nil {
		audioClient.Release()
		device.Release()
		return nil, fmt.Errorf("%w: get capture client: %v", ErrSourceUnavailable, err)
	}

	if err := audioClient.Start(); err != nil {
		captureClient.Release()
		audioClient.Release()
		device.Release()
		return nil, fmt.Errorf("%w: start audio client: %v", ErrSourceUnavailable, err)
	}

	channels := int(waveFormat.NChannels)
	if channels < 1 {
		channels = 1
	}

	return &WASAPISource{
		device:        device,
		audioClient:   audioClient,
		captureClient: captureClient,
		waveFormat:    waveFormat,
		channels:      channels,
	}, nil
}

// ReadFrame blocks (via short polling sleeps, since WASAPI capture is
// event/poll driven rather than blocking like PortAudio) until len(out)
// mono samples have accumulated.
func (s *WASAPISource) ReadFrame(out []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	need := len(out)
	for len(s.carry) < need {
		samples, err := s.pullAvailable()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSourceLost, err)
		}
		if len(samples) == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		s.carry = append(s.carry, samples...)
	}
	copy(out, s.carry[:need])
	s.carry = s.carry[need:]
	return nil
}

func (s *WASAPISource) pullAvailable() ([]float32, error) {
	var packetLength uint32
	if err := s.captureClient.GetNextPacketSize(&packetLength); err != nil {
		return nil, err
	}
	if packetLength == 0 {
		return nil, nil
	}

	var data *byte
	var numFrames uint32
	var flags uint32
	if err := s.captureClient.GetBuffer(&data, &numFrames, &flags, nil, nil); err != nil {
		if isBufferEmpty(err) {
			return nil, nil
		}
		return nil, err
	}
	defer s.captureClient.ReleaseBuffer(numFrames)

	if numFrames == 0 || data == nil {
		return nil, nil
	}

	raw := unsafe.Slice((*float32)(unsafe.Pointer(data)), int(numFrames)*s.channels)
	out := make([]float32, numFrames)
	downmixInterleaved(raw, s.channels, out)
	return out, nil
}

// isBufferEmpty reports whether err is the AUDCLNT_S_BUFFER_EMPTY success
// code, which the underlying COM binding surfaces as a non-nil error even
// though it is not a failure.
func isBufferEmpty(err error) bool {
	const audclntSBufferEmpty = 0x08890001
	if oleErr, ok := err.(*ole.OleError); ok {
		return uint32(oleErr.Code()) == audclntSBufferEmpty
	}
	return false
}

// Flush discards any carried-over samples.
func (s *WASAPISource) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carry = s.carry[:0]
}

// Enumerate returns a single synthetic entry: Windows loopback capture
// always targets the current default render device, with no PulseAudio-style
// per-sink selection.
func (s *WASAPISource) Enumerate() []Descriptor {
	return []Descriptor{{Name: "default", Desc: "Default Audio Output"}}
}

// Close releases the WASAPI capture chain.
func (s *WASAPISource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audioClient != nil {
		s.audioClient.Stop()
	}
	if s.captureClient != nil {
		s.captureClient.Release()
	}
	if s.audioClient != nil {
		s.audioClient.Release()
	}
	if s.device != nil {
		s.device.Release()
	}
	return nil
}
