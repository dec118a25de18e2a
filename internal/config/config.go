// Package config holds the daemon's runtime-reconfigurable settings.
//
// Unlike the teacher's client/internal/config package, nothing here is
// persisted to disk: the daemon has no configuration file and no saved
// state (spec: "Persisted state: None"). Options simply carries defaults
// and the restricted value sets the control plane is allowed to apply.
package config

// DefaultMonitorSentinel selects the platform's default loopback/monitor
// source instead of a named one.
const DefaultMonitorSentinel = "@DEFAULT_MONITOR@"

// FreqMin is fixed; only FreqMax is runtime-configurable.
const FreqMin = 50.0

// Options holds the current runtime configuration. The zero value is not
// usable; use Default().
type Options struct {
	Source   string
	FPS      int
	FreqMax  int
	BarCount int
}

// Default returns the daemon's startup configuration.
func Default() Options {
	return Options{
		Source:   DefaultMonitorSentinel,
		FPS:      30,
		FreqMax:  12000,
		BarCount: 72,
	}
}

// ValidFPS reports whether fps is one of the allowed emission rates.
func ValidFPS(fps int) bool {
	switch fps {
	case 24, 30, 60:
		return true
	}
	return false
}

// ValidFreqMax reports whether hz is one of the allowed frequency ceilings.
func ValidFreqMax(hz int) bool {
	switch hz {
	case 10000, 12000, 14000, 16000, 18000:
		return true
	}
	return false
}

// ValidBarCount reports whether n is one of the allowed bar counts.
func ValidBarCount(n int) bool {
	switch n {
	case 8, 16, 24, 36, 72, 100, 144:
		return true
	}
	return false
}
