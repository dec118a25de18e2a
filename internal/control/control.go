// Package control parses subscriber-issued text commands and produces the
// hand-serialized JSON acknowledgments the WebSocket server sends back.
//
// Command parsing follows the austinkregel-vscode-music-player IPC
// handler's line-oriented strings.Cut dispatch style. Response bodies are
// built by one function per wire message shape, serialized by hand (no
// encoding/json), per spec.md's design note that the response set is a
// small closed tagged variant.
package control

import (
	"strconv"
	"strings"

	"github.com/wktkow/vis-capture/internal/config"
)

// Kind enumerates the closed set of acknowledgment shapes; each shape has
// its own builder function below (Sources, SourceChanged, ...).
type Kind int

const (
	// KindNone means the command was unknown, malformed, or out-of-set:
	// no response is sent.
	KindNone Kind = iota
	KindSources
	KindSourceChanged
	KindSourceError
	KindFPSChanged
	KindFreqMaxChanged
	KindBarCountChanged
)

// Effect describes what the orchestrator must do in response to a parsed
// command, beyond sending the JSON acknowledgment.
type Effect int

const (
	EffectNone Effect = iota
	EffectGetSources
	EffectSetSource
	EffectSetFPS
	EffectSetFreqMax
	EffectSetBarCount
)

// Command is one parsed line from the subscriber.
type Command struct {
	Effect   Effect
	Source   string
	FPS      int
	FreqMax  int
	BarCount int
}

// Parse decodes one line of the command language of spec.md §4.D. ok is
// false for unknown commands or out-of-set values, both of which are
// silently ignored (no response, no log) per spec.md §7's BadCommand
// policy.
func Parse(line string) (Command, bool) {
	line = strings.TrimRight(line, "\r\n")

	if line == "GET_SOURCES" {
		return Command{Effect: EffectGetSources}, true
	}

	if rest, ok := strings.CutPrefix(line, "SET_SOURCE:"); ok {
		name := unescapeSource(rest)
		return Command{Effect: EffectSetSource, Source: name}, true
	}

	if rest, ok := strings.CutPrefix(line, "SET_FPS:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || !config.ValidFPS(n) {
			return Command{}, false
		}
		return Command{Effect: EffectSetFPS, FPS: n}, true
	}

	if rest, ok := strings.CutPrefix(line, "SET_FREQ_MAX:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || !config.ValidFreqMax(n) {
			return Command{}, false
		}
		return Command{Effect: EffectSetFreqMax, FreqMax: n}, true
	}

	if rest, ok := strings.CutPrefix(line, "SET_BAR_COUNT:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || !config.ValidBarCount(n) {
			return Command{}, false
		}
		return Command{Effect: EffectSetBarCount, BarCount: n}, true
	}

	return Command{}, false
}

// unescapeSource reverses the backslash-escaping of '"' applied by
// escapeJSON, mirroring spec.md §4.D's "source name (escaped via
// backslash for \")" argument grammar.
func unescapeSource(s string) string {
	return strings.ReplaceAll(s, `\"`, `"`)
}

// escapeJSON escapes only the double-quote character, per spec.md §4.D:
// "no other escaping is performed (names and descriptions are trusted OS
// strings)".
func escapeJSON(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Sources builds the {"sources":[...]} response.
func Sources(descs []SourceDescriptor) []byte {
	var b strings.Builder
	b.WriteString(`{"sources":[`)
	for i, d := range descs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"name":"`)
		b.WriteString(escapeJSON(d.Name))
		b.WriteString(`","desc":"`)
		b.WriteString(escapeJSON(d.Desc))
		b.WriteString(`"}`)
	}
	b.WriteString(`]}`)
	return []byte(b.String())
}

// SourceDescriptor mirrors audiosrc.Descriptor without importing it, so
// this package stays free of a dependency on any platform audio source.
type SourceDescriptor struct {
	Name string
	Desc string
}

// SourceChanged builds the {"sourceChanged":"<name>"} response.
func SourceChanged(name string) []byte {
	return []byte(`{"sourceChanged":"` + escapeJSON(name) + `"}`)
}

// SourceError builds the {"sourceError":"<message>"} response.
func SourceError(message string) []byte {
	return []byte(`{"sourceError":"` + escapeJSON(message) + `"}`)
}

// FPSChanged builds the {"fpsChanged":<n>} response.
func FPSChanged(n int) []byte {
	return []byte(`{"fpsChanged":` + strconv.Itoa(n) + `}`)
}

// FreqMaxChanged builds the {"freqMaxChanged":<hz>} response.
func FreqMaxChanged(hz int) []byte {
	return []byte(`{"freqMaxChanged":` + strconv.Itoa(hz) + `}`)
}

// BarCountChanged builds the {"barCountChanged":<k>} response.
func BarCountChanged(k int) []byte {
	return []byte(`{"barCountChanged":` + strconv.Itoa(k) + `}`)
}
