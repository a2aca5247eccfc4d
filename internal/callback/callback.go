// Package callback implements the real-time audio handlers invoked on the
// PortAudio audio thread.
//
// A handler receives float32 views over the engine's interleaved buffers,
// the frame count and the status flags for one buffer period, and returns a
// Result telling the engine whether to keep calling it.
//
// Handlers run under real-time constraints. They MUST NOT:
//   - allocate (make, new, append, fmt, closures that escape)
//   - block (mutex, channel send, I/O, time.Sleep)
//   - log
//
// Anything the control goroutine needs to know is pushed as an Event into an
// rtring.Ring, which drops instead of blocking when full.
package callback

import "github.com/drgolem/go-portaudio-demos/internal/rtring"

// Result tells the engine what to do after a callback returns.
// Values match paContinue, paComplete and paAbort.
type Result int

const (
	// Continue keeps the callback being invoked.
	Continue Result = 0
	// Complete finishes after the buffers already queued are played.
	Complete Result = 1
	// Abort stops the stream as soon as possible, discarding queued audio.
	Abort Result = 2
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Complete:
		return "complete"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// Status is the bitset of overflow/underflow conditions the engine detected
// before the current invocation. Values match PaStreamCallbackFlags.
type Status uint

const (
	InputUnderflow  Status = 0x01
	InputOverflow   Status = 0x02
	OutputUnderflow Status = 0x04
	OutputOverflow  Status = 0x08
	PrimingOutput   Status = 0x10
)

// Has reports whether every bit of flag is set.
func (s Status) Has(flag Status) bool {
	return s&flag == flag
}

var statusNames = []struct {
	flag Status
	name string
}{
	{InputUnderflow, "input-underflow"},
	{InputOverflow, "input-overflow"},
	{OutputUnderflow, "output-underflow"},
	{OutputOverflow, "output-overflow"},
	{PrimingOutput, "priming-output"},
}

// String renders the set flags joined by '|'. Not for use on the audio
// thread.
func (s Status) String() string {
	if s == 0 {
		return "none"
	}
	var out []byte
	for _, sn := range statusNames {
		if s.Has(sn.flag) {
			if len(out) > 0 {
				out = append(out, '|')
			}
			out = append(out, sn.name...)
		}
	}
	if len(out) == 0 {
		return "unknown"
	}
	return string(out)
}

// Context carries stream parameters fixed at open time. It is written once
// before the stream starts and only read afterwards.
type Context struct {
	Channels int
}

// Handler processes one buffer period. in is nil when the engine supplied
// no input buffer, out is nil when there is no output buffer.
type Handler interface {
	Process(in, out []float32, frames int, status Status) Result
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(in, out []float32, frames int, status Status) Result

func (f HandlerFunc) Process(in, out []float32, frames int, status Status) Result {
	return f(in, out, frames, status)
}

// EventKind identifies what an Event reports.
type EventKind uint8

const (
	// EventMetrics carries peak/RMS for one buffer.
	EventMetrics EventKind = iota + 1
	// EventStatus reports non-zero status flags.
	EventStatus
	// EventNoInput reports an absent input buffer.
	EventNoInput
	// EventNoContext reports a missing Context; the stream was aborted.
	EventNoContext
)

func (k EventKind) String() string {
	switch k {
	case EventMetrics:
		return "metrics"
	case EventStatus:
		return "status"
	case EventNoInput:
		return "no-input"
	case EventNoContext:
		return "no-context"
	default:
		return "unknown"
	}
}

// Event is a fixed-size record pushed from the audio thread.
type Event struct {
	Kind EventKind
	// Seq is the zero-based callback invocation that produced the event.
	Seq    uint64
	Frames int
	Peak   float32
	RMS    float64
	Status Status
}

// Events is the side channel handlers report through.
type Events = rtring.Ring[Event]

// NewEvents creates a side channel able to hold at least size events.
func NewEvents(size int) *Events {
	return rtring.New[Event](size)
}

// emit pushes e when a side channel is attached. A full ring drops e.
func emit(events *Events, e Event) {
	if events != nil {
		events.TryPush(e)
	}
}

// sampleCount returns frames*channels clamped to the buffer length.
func sampleCount(buf []float32, frames, channels int) int {
	n := frames * channels
	if n < 0 {
		return 0
	}
	if n > len(buf) {
		return len(buf)
	}
	return n
}
