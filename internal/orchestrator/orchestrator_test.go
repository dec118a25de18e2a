package orchestrator

import (
	"strings"
	"testing"
	"time"

	"github.com/wktkow/vis-capture/internal/audiosrc"
	"github.com/wktkow/vis-capture/internal/config"
	"github.com/wktkow/vis-capture/internal/dsp"
	"github.com/wktkow/vis-capture/internal/wsserver"
)

type fakeSource struct {
	enumerateResult []audiosrc.Descriptor
	openFails       map[string]bool
	flushed         bool
	closed          bool
	reads           int
}

func (f *fakeSource) ReadFrame(out []float32) error { f.reads++; return nil }
func (f *fakeSource) Flush()                        { f.flushed = true }
func (f *fakeSource) Enumerate() []audiosrc.Descriptor {
	return f.enumerateResult
}
func (f *fakeSource) Close() error { f.closed = true; return nil }

func newTestOrchestrator(t *testing.T) (*Orchestrator, *wsserver.Server) {
	t.Helper()
	srv, err := wsserver.Start(0)
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	o := &Orchestrator{
		src:        &fakeSource{},
		sourceName: config.DefaultMonitorSentinel,
		proc:       dsp.NewProcessor(12000, 72),
		srv:        srv,
		opts:       config.Default(),
		idle:       true,
		frame:      make([]float32, dsp.FrameSize),
	}
	return o, srv
}

func TestHandleCommandSetFPSUpdatesOpts(t *testing.T) {
	o, srv := newTestOrchestrator(t)
	defer srv.Stop()

	o.handleCommand("SET_FPS:60")
	if o.opts.FPS != 60 {
		t.Fatalf("fps = %d, want 60", o.opts.FPS)
	}
}

func TestHandleCommandUnknownLeavesStateUnchanged(t *testing.T) {
	o, srv := newTestOrchestrator(t)
	defer srv.Stop()

	before := o.opts
	o.handleCommand("NOT_A_COMMAND")
	if o.opts != before {
		t.Fatalf("opts changed: %+v vs %+v", o.opts, before)
	}
}

func TestHandleCommandSetBarCountReconfiguresProcessor(t *testing.T) {
	o, srv := newTestOrchestrator(t)
	defer srv.Stop()

	o.handleCommand("SET_BAR_COUNT:16")
	if o.opts.BarCount != 16 {
		t.Fatalf("bar count = %d, want 16", o.opts.BarCount)
	}
	if o.proc.BarCount() != 16 {
		t.Fatalf("processor bar count = %d, want 16", o.proc.BarCount())
	}
}

func TestHandleCommandSetSourceQueuesPending(t *testing.T) {
	o, srv := newTestOrchestrator(t)
	defer srv.Stop()

	o.handleCommand("SET_SOURCE:some-device")
	name, ok := o.pending.take()
	if !ok || name != "some-device" {
		t.Fatalf("pending = %q, %v", name, ok)
	}
}

func TestPendingSourceTakeIsOneShot(t *testing.T) {
	var p pendingSource
	p.set("x")
	if _, ok := p.take(); !ok {
		t.Fatal("expected first take to succeed")
	}
	if _, ok := p.take(); ok {
		t.Fatal("expected second take to report nothing pending")
	}
}

func TestEncodeBarsLittleEndianLength(t *testing.T) {
	bars := make([]float32, 72)
	got := encodeBars(bars)
	if len(got) != 72*4 {
		t.Fatalf("len = %d, want %d", len(got), 72*4)
	}
}

func TestIdlePollDoesNotReadWhenNoClient(t *testing.T) {
	o, srv := newTestOrchestrator(t)
	defer srv.Stop()

	done := false
	start := time.Now()
	go func() {
		time.Sleep(10 * time.Millisecond)
		done = true
	}()
	err := o.Run(func() bool { return done || time.Since(start) > time.Second })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	fs := o.src.(*fakeSource)
	if fs.reads != 0 {
		t.Fatalf("idle loop read %d frames with no client", fs.reads)
	}
	if fs.closed {
		t.Fatal("source should not be closed by idle loop")
	}
}

func TestHandleCommandSetSourceEmptyLineIgnored(t *testing.T) {
	o, srv := newTestOrchestrator(t)
	defer srv.Stop()
	o.handleCommand(strings.TrimSpace(""))
	if _, ok := o.pending.take(); ok {
		t.Fatal("expected no pending source change for blank line")
	}
}
