package callback

import (
	"sync/atomic"

	"github.com/drgolem/go-portaudio-demos/internal/dsp"
)

// Inverter is the full-duplex handler: each output sample is the negated
// input sample. An absent input buffer produces silence.
type Inverter struct {
	ctx    *Context
	events *Events
	seq    atomic.Uint64
}

// NewInverter creates a duplex passthrough handler.
func NewInverter(ctx *Context, events *Events) *Inverter {
	return &Inverter{ctx: ctx, events: events}
}

// Process implements Handler.
func (v *Inverter) Process(in, out []float32, frames int, status Status) Result {
	seq := v.seq.Add(1) - 1

	if v.ctx == nil {
		emit(v.events, Event{Kind: EventNoContext, Seq: seq, Frames: frames})
		return Abort
	}

	if status != 0 {
		emit(v.events, Event{Kind: EventStatus, Seq: seq, Frames: frames, Status: status})
	}

	if out == nil {
		return Continue
	}

	if in == nil {
		dsp.Silence(out)
		emit(v.events, Event{Kind: EventNoInput, Seq: seq, Frames: frames})
		return Continue
	}

	n := sampleCount(out, frames, v.ctx.Channels)
	dsp.Invert(out[:n], in)
	clear(out[n:])
	return Continue
}

// Invocations returns how many times Process has run.
func (v *Inverter) Invocations() uint64 {
	return v.seq.Load()
}
