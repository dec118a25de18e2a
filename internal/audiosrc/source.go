// Package audiosrc defines the platform-independent loopback audio source
// contract and the format-conversion helpers shared by both platform
// implementations. The interface is implemented twice — once per platform
// family, per spec.md's Design Notes ("treat the audio source as a
// trait/interface with two implementations; share no state between them") —
// in source_posix.go (PulseAudio/PipeWire monitor capture via PortAudio) and
// source_windows.go (WASAPI shared-mode loopback).
package audiosrc

import "errors"

// DefaultMonitorSentinel selects the platform's default loopback/monitor
// source instead of a named one.
const DefaultMonitorSentinel = "@DEFAULT_MONITOR@"

// ErrSourceUnavailable is returned by Open when the requested (or default)
// capture endpoint cannot be opened. The caller may revert to the
// previously open source.
var ErrSourceUnavailable = errors.New("audiosrc: source unavailable")

// ErrSourceLost is returned by ReadFrame when the underlying stream fails.
// This is fatal: the caller stops the main loop.
var ErrSourceLost = errors.New("audiosrc: source lost")

// Descriptor describes one selectable capture endpoint.
type Descriptor struct {
	Name string
	Desc string
}

// Source is a loopback capture stream delivering fixed-size mono float32
// frames at SampleRate.
type Source interface {
	// ReadFrame blocks until exactly len(out) samples have been written to
	// out. Returns ErrSourceLost on any underlying error.
	ReadFrame(out []float32) error
	// Flush discards any buffered audio so the next ReadFrame delivers
	// fresh data.
	Flush()
	// Enumerate lists selectable inputs. Platforms without selection return
	// one synthetic entry.
	Enumerate() []Descriptor
	// Close releases the stream.
	Close() error
}

// downmixInterleaved averages an interleaved multi-channel float32 buffer
// down to mono, writing len(out) samples. in must contain
// len(out)*channels samples.
func downmixInterleaved(in []float32, channels int, out []float32) {
	if channels <= 1 {
		copy(out, in)
		return
	}
	for i := range out {
		var sum float32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += in[base+c]
		}
		out[i] = sum / float32(channels)
	}
}
