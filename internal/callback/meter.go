package callback

import (
	"sync/atomic"

	"github.com/drgolem/go-portaudio-demos/internal/dsp"
)

// Tap receives the raw input samples of each buffer. Implementations must
// copy what they need and return without blocking.
type Tap interface {
	Tap(samples []float32)
}

// Meter is the capture handler: it measures peak and RMS of every input
// buffer and reports them through the event ring.
type Meter struct {
	ctx    *Context
	events *Events
	tap    Tap

	seq atomic.Uint64
}

// MeterOption configures a Meter.
type MeterOption func(*Meter)

// WithTap forwards the input samples of every buffer to t.
func WithTap(t Tap) MeterOption {
	return func(m *Meter) { m.tap = t }
}

// NewMeter creates a capture handler. ctx may be nil only through
// misconfiguration, in which case the first callback aborts the stream.
func NewMeter(ctx *Context, events *Events, opts ...MeterOption) *Meter {
	m := &Meter{ctx: ctx, events: events}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Process implements Handler.
func (m *Meter) Process(in, _ []float32, frames int, status Status) Result {
	seq := m.seq.Add(1) - 1

	if m.ctx == nil {
		emit(m.events, Event{Kind: EventNoContext, Seq: seq, Frames: frames})
		return Abort
	}

	if status != 0 {
		emit(m.events, Event{Kind: EventStatus, Seq: seq, Frames: frames, Status: status})
	}

	if in == nil {
		emit(m.events, Event{Kind: EventNoInput, Seq: seq, Frames: frames})
		return Continue
	}

	samples := in[:sampleCount(in, frames, m.ctx.Channels)]
	if m.tap != nil {
		m.tap.Tap(samples)
	}

	peak, rms := dsp.Measure(samples)
	emit(m.events, Event{
		Kind:   EventMetrics,
		Seq:    seq,
		Frames: frames,
		Peak:   peak,
		RMS:    rms,
	})
	return Continue
}

// Invocations returns how many times Process has run.
func (m *Meter) Invocations() uint64 {
	return m.seq.Load()
}
