// Package orchestrator drives the capture/process/serve pipeline: it owns
// the audio source, the processor, and the WebSocket server, and ties them
// together in the main loop described by spec.md §4.E.
//
// The main-loop pacing (blocking read, paced send, non-blocking poll in
// between) is grounded on the teacher's captureLoop in client/audio.go; the
// pending-source handoff is grounded on the teacher's mutex-guarded
// ChannelState pattern in server/internal/core/channel_state.go.
package orchestrator

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/wktkow/vis-capture/internal/audiosrc"
	"github.com/wktkow/vis-capture/internal/config"
	"github.com/wktkow/vis-capture/internal/control"
	"github.com/wktkow/vis-capture/internal/dsp"
	"github.com/wktkow/vis-capture/internal/wsserver"
)

const idlePoll = 50 * time.Millisecond

// pendingSource is the only field written from the control-plane callback
// and read from the main loop. Guarded by a mutex per spec.md §5; the
// requested flag is set under mu by the writer and stays set until the
// single reader consumes it, also under mu.
type pendingSource struct {
	mu        sync.Mutex
	name      string
	requested bool
}

func (p *pendingSource) set(name string) {
	p.mu.Lock()
	p.name = name
	p.requested = true
	p.mu.Unlock()
}

func (p *pendingSource) take() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.requested {
		return "", false
	}
	p.requested = false
	return p.name, true
}

// Orchestrator owns every long-lived component and runs the main loop.
type Orchestrator struct {
	src        audiosrc.Source
	sourceName string
	proc       *dsp.Processor
	srv        *wsserver.Server
	opts       config.Options

	pending pendingSource
	idle    bool
	lastSend time.Time
	frame   []float32
}

// New opens the default audio source, initializes the processor at
// defaults, and binds the WebSocket server to port, per spec.md §4.E's
// "Initial state".
func New(port int) (*Orchestrator, error) {
	opts := config.Default()

	src, err := audiosrc.Open(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("open audio source: %w", err)
	}

	proc := dsp.NewProcessor(opts.FreqMax, opts.BarCount)

	srv, err := wsserver.Start(port)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("%w", err)
	}

	return &Orchestrator{
		src:        src,
		sourceName: opts.Source,
		proc:       proc,
		srv:        srv,
		opts:       opts,
		idle:       true,
		frame:      make([]float32, dsp.FrameSize),
	}, nil
}

// Done reports whether the run loop should keep going.
type Done func() bool

// Run drives the main loop until done() reports true or a fatal error
// occurs (audio source lost, or source revert failed after a failed
// SET_SOURCE — spec.md §9 Open Question (a): treated as fatal here).
func (o *Orchestrator) Run(done Done) error {
	for !done() {
		o.srv.Poll(o.handleCommand)

		if name, ok := o.pending.take(); ok {
			if err := o.applySourceChange(name); err != nil {
				return err
			}
		}

		if !o.srv.HasClient() {
			o.idle = true
			time.Sleep(idlePoll)
			continue
		}

		if o.idle {
			o.src.Flush()
			o.proc.Reset()
			o.idle = false
			o.lastSend = time.Now()
		}

		if err := o.src.ReadFrame(o.frame); err != nil {
			return fmt.Errorf("audio source lost: %w", err)
		}
		bars := o.proc.Step(o.frame)

		interval := time.Second / time.Duration(o.opts.FPS)
		if time.Since(o.lastSend) >= interval {
			if err := o.srv.SendBinary(encodeBars(bars)); err != nil {
				log.Printf("orchestrator: send failed: %v", err)
			}
			o.lastSend = time.Now()
		}
	}
	return nil
}

// Close releases the server and audio source, in that order, per spec.md
// §5's shutdown sequencing (client socket/listener before audio).
func (o *Orchestrator) Close() {
	o.srv.Stop()
	o.src.Close()
}

func (o *Orchestrator) handleCommand(line string) {
	cmd, ok := control.Parse(line)
	if !ok {
		return
	}

	switch cmd.Effect {
	case control.EffectGetSources:
		descs := o.src.Enumerate()
		converted := make([]control.SourceDescriptor, len(descs))
		for i, d := range descs {
			converted[i] = control.SourceDescriptor{Name: d.Name, Desc: d.Desc}
		}
		o.send(control.Sources(converted))

	case control.EffectSetSource:
		o.pending.set(cmd.Source)

	case control.EffectSetFPS:
		o.opts.FPS = cmd.FPS
		o.send(control.FPSChanged(cmd.FPS))

	case control.EffectSetFreqMax:
		o.opts.FreqMax = cmd.FreqMax
		o.proc.Reconfigure(o.opts.FreqMax, o.proc.BarCount())
		o.send(control.FreqMaxChanged(cmd.FreqMax))

	case control.EffectSetBarCount:
		o.opts.BarCount = cmd.BarCount
		o.proc.Reconfigure(o.opts.FreqMax, o.opts.BarCount)
		o.send(control.BarCountChanged(cmd.BarCount))
	}
}

// applySourceChange implements spec.md §4.D's SET_SOURCE behavior: close
// the current source, open the requested one, and on failure reopen the
// previous source by name. A failure to reopen the previous source is
// treated as fatal, per spec.md §9 Open Question (a)'s recommendation.
func (o *Orchestrator) applySourceChange(name string) error {
	o.src.Close()

	newSrc, err := audiosrc.Open(name)
	if err != nil {
		o.send(control.SourceError(err.Error()))
		reverted, revErr := audiosrc.Open(o.sourceName)
		if revErr != nil {
			return fmt.Errorf("source lost reverting after failed SET_SOURCE: %w", revErr)
		}
		o.src = reverted
		return nil
	}

	o.src = newSrc
	o.sourceName = name
	o.proc.Reset()
	o.send(control.SourceChanged(name))
	return nil
}

func (o *Orchestrator) send(payload []byte) {
	if err := o.srv.SendText(payload); err != nil {
		log.Printf("orchestrator: command reply failed: %v", err)
	}
}

func encodeBars(bars []float32) []byte {
	buf := make([]byte, len(bars)*4)
	for i, v := range bars {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
