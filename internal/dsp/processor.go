// Package dsp implements the sliding-window FFT analysis and cava-style
// post-processing (auto-gain, smoothing, gravity) that turns mono PCM frames
// into a bar vector suitable for rendering.
package dsp

import (
	"math"

	"github.com/wktkow/vis-capture/internal/config"
	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// SampleRate is the fixed capture rate in Hz.
	SampleRate = 44100
	// FrameSize is one 60 Hz tick of audio at SampleRate.
	FrameSize = SampleRate / 60
	// FFTSize is the sliding window length; must exceed FrameSize.
	FFTSize = 4096

	// gravityG is the per-frame gravity acceleration applied to the peak
	// tracker's fall velocity.
	gravityG = float32(0.08)
	// decayFactor is the exponential falloff applied to mem on a falling frame.
	decayFactor = float32(0.77)

	sensMin   = float32(0.02)
	sensMax   = float32(20.0)
	sensInit  = float32(1.0)
	overshootDecay = float32(0.98)
	growthRate     = float32(1.001)
	rampFactor     = float32(1.1)
	rampCeiling    = float32(2.0)
	rampAudioFloor = float32(0.005)
)

func init() {
	if FFTSize <= FrameSize {
		panic("dsp: FFTSize must exceed FrameSize")
	}
}

// Processor owns all per-subscriber analysis state. It is not safe for
// concurrent use; the orchestrator is its sole caller. Reconfiguring bar
// count or frequency ceiling replaces the owned state wholesale via Reset,
// per the teacher's Design Notes ("global mutable processor state → an
// owned struct ... reconfiguration replaces the value").
type Processor struct {
	fft *fourier.FFT

	freqMax  float64
	barCount int

	hann    []float32
	winBuf  []float32 // raw sliding window, length FFTSize
	windowF []float64 // scratch: winBuf * hann, converted for gonum

	lo, hi []int
	eq     []float32

	mem, peak, fall, out []float32

	sens     float32
	initMode bool

	gate peakGate
}

// NewProcessor returns a Processor configured for the given frequency
// ceiling and bar count, both of which must already be validated against
// config.ValidFreqMax / config.ValidBarCount.
func NewProcessor(freqMax, barCount int) *Processor {
	p := &Processor{
		fft:     fourier.NewFFT(FFTSize),
		freqMax: float64(freqMax),
		winBuf:  make([]float32, FFTSize),
		windowF: make([]float64, FFTSize),
	}
	p.barCount = barCount
	p.Reset()
	return p
}

// Reconfigure updates the frequency ceiling and/or bar count and
// reinitializes all processor state (spec: "reset whenever bar count or
// frequency ceiling changes").
func (p *Processor) Reconfigure(freqMax, barCount int) {
	p.freqMax = float64(freqMax)
	p.barCount = barCount
	p.Reset()
}

// Reset zeroes all per-bar state, rebuilds the Hann window, bin cutoffs and
// EQ weights, and restores sens/init_mode to their initial values. Called on
// construction, on reconfiguration, and whenever a new subscriber connects.
func (p *Processor) Reset() {
	p.hann = buildHann(FFTSize)
	p.lo, p.hi = buildCutoffs(p.barCount, FFTSize, SampleRate, config.FreqMin, p.freqMax)
	p.eq = buildEQ(p.barCount, config.FreqMin, p.freqMax)

	p.mem = make([]float32, p.barCount)
	p.peak = make([]float32, p.barCount)
	p.fall = make([]float32, p.barCount)
	p.out = make([]float32, p.barCount)

	for i := range p.winBuf {
		p.winBuf[i] = 0
	}

	p.sens = sensInit
	p.initMode = true
	p.gate = peakGate{}
}

// BarCount returns the active bar count.
func (p *Processor) BarCount() int { return p.barCount }

// Sens returns the current auto-sensitivity gain (for tests/diagnostics).
func (p *Processor) Sens() float32 { return p.sens }

// IsSilent reports whether the most recently processed frame was silent.
func (p *Processor) IsSilent() bool { return p.gate.IsSilent() }

// Step runs one pass of the pipeline (spec.md §4.B steps 1-10 plus the
// auto-sensitivity update) over a newly captured frame and returns the
// resulting bar vector. The returned slice is owned by the Processor and is
// only valid until the next call to Step or Reset.
func (p *Processor) Step(frame []float32) []float32 {
	// 1. Slide the window left by len(frame) and append the new frame.
	n := len(frame)
	copy(p.winBuf, p.winBuf[n:])
	copy(p.winBuf[FFTSize-n:], frame)

	// 2. Peak gate / silence detection.
	audioMax := p.gate.process(frame)
	silent := p.gate.IsSilent()

	// 3. Window + FFT.
	for i, s := range p.winBuf {
		p.windowF[i] = float64(s) * float64(p.hann[i])
	}
	coeffs := p.fft.Coefficients(nil, p.windowF)

	half := float64(FFTSize / 2)
	overshoot := false

	for b := 0; b < p.barCount; b++ {
		// 4/5. Magnitude + binning: average |X[k]| over [lo[b], hi[b]].
		lo, hi := p.lo[b], p.hi[b]
		var sum float64
		count := 0
		for k := lo; k <= hi && k < len(coeffs); k++ {
			re, im := real(coeffs[k]), imag(coeffs[k])
			sum += math.Sqrt(re*re + im*im)
			count++
		}
		var avg float64
		if count > 0 {
			avg = sum / float64(count)
		}

		// 6. Scale.
		raw := float32(math.Sqrt(avg/half)) * p.eq[b] * p.sens

		// 7. Asymmetric smoothing: instant attack, exponential decay.
		if raw > p.mem[b] {
			p.mem[b] = raw
		} else {
			p.mem[b] *= decayFactor
		}

		// 8. Gravity.
		if p.mem[b] >= p.peak[b] {
			p.peak[b] = p.mem[b]
			p.fall[b] = 0
		} else {
			p.peak[b] -= gravityG * p.fall[b]
			p.fall[b] += gravityG
			if p.peak[b] < p.mem[b] {
				p.peak[b] = p.mem[b]
			}
			if p.peak[b] < 0 {
				p.peak[b] = 0
			}
		}

		// 9. Overshoot probe.
		if p.peak[b] > 1 {
			overshoot = true
		}

		// 10. Output.
		v := p.peak[b]
		if v > 1 {
			v = 1
		}
		p.out[b] = v
	}

	p.updateSens(overshoot, silent, audioMax)

	return p.out
}

// updateSens applies spec.md §4.B's auto-sensitivity rule.
func (p *Processor) updateSens(overshoot, silent bool, audioMax float32) {
	switch {
	case overshoot:
		p.sens *= overshootDecay
		p.initMode = false
	case !silent:
		p.sens *= growthRate
		if p.initMode && audioMax > rampAudioFloor {
			p.sens *= rampFactor
			if p.sens > rampCeiling {
				p.initMode = false
			}
		}
	}
	if p.sens < sensMin {
		p.sens = sensMin
	}
	if p.sens > sensMax {
		p.sens = sensMax
	}
}
