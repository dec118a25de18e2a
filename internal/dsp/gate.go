package dsp

// silenceThreshold is the absolute-peak floor below which a frame is
// treated as silence (prevents sens drift on sub-16-bit float noise).
const silenceThreshold = float32(1e-4)

// peakGate tracks whether the most recently processed frame was silent.
// Shaped after the teacher's noisegate.Gate: a small stateful helper that
// inspects one frame at a time and exposes an IsOpen-style accessor,
// retargeted from an RMS threshold to spec.md's absolute-peak threshold.
type peakGate struct {
	silent bool
}

// process computes the absolute peak of frame and records whether it falls
// below silenceThreshold. Returns the peak for reuse by the caller (the
// init-mode sensitivity ramp needs the same value).
func (g *peakGate) process(frame []float32) float32 {
	var peak float32
	for _, s := range frame {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	g.silent = peak < silenceThreshold
	return peak
}

// IsSilent reports whether the last processed frame was below the silence
// threshold.
func (g *peakGate) IsSilent() bool {
	return g.silent
}
