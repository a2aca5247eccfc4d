// Package recorder writes captured input to a 16-bit PCM WAV file without
// doing any I/O on the audio thread.
//
// Architecture:
//
//	Audio Callback              Ring Buffer            Writer goroutine
//	┌──────────────┐          ┌──────────┐          ┌────────────────┐
//	│ Tap(samples) │──try───▶ │ ●●●●●○○○ │──read──▶ │ wav.Encoder    │
//	│ (non-blocking)│  write   └──────────┘          │ (blocking OK)  │
//	└──────────────┘                                 └────────────────┘
//
// When the ring is full, or its lock is momentarily held by the writer, the
// callback drops the buffer and counts the dropped bytes.
package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/smallnest/ringbuffer"
)

const (
	bitDepth      = 16
	wavFormatPCM  = 1
	bytesPerFloat = 4

	// DefaultPollInterval is how often the writer drains the ring.
	DefaultPollInterval = 20 * time.Millisecond
)

// Recorder buffers float32 samples from the callback and encodes them.
type Recorder struct {
	ring     *ringbuffer.RingBuffer
	enc      *wav.Encoder
	closer   io.Closer
	channels int
	poll     time.Duration

	// writer-goroutine state
	chunk  []byte
	carry  [bytesPerFloat]byte
	carryN int
	pcm    *audio.IntBuffer

	droppedBytes atomic.Uint64
	samples      atomic.Uint64
	closed       bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.poll = d
		}
	}
}

// RingBytes returns a ring size holding the given span of float32 audio,
// rounded to whole samples.
func RingBytes(sampleRate, channels int, span time.Duration) int {
	n := int(float64(sampleRate) * span.Seconds())
	if n < 1 {
		n = 1
	}
	return n * channels * bytesPerFloat
}

// Create opens path for writing and returns a recorder encoding to it.
func Create(path string, sampleRate, channels, ringBytes int, opts ...Option) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	r := New(f, sampleRate, channels, ringBytes, opts...)
	r.closer = f
	return r, nil
}

// New returns a recorder encoding to w. ringBytes is rounded down to whole
// float32 samples.
func New(w io.WriteSeeker, sampleRate, channels, ringBytes int, opts ...Option) *Recorder {
	ringBytes -= ringBytes % bytesPerFloat
	if ringBytes < bytesPerFloat {
		ringBytes = bytesPerFloat
	}

	const chunkBytes = 16 * 1024
	r := &Recorder{
		ring:     ringbuffer.New(ringBytes),
		enc:      wav.NewEncoder(w, sampleRate, bitDepth, channels, wavFormatPCM),
		channels: channels,
		poll:     DefaultPollInterval,
		chunk:    make([]byte, chunkBytes),
		pcm: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:           make([]int, 0, chunkBytes/bytesPerFloat+1),
			SourceBitDepth: bitDepth,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tap queues samples for encoding. It is called on the audio thread and
// never blocks.
func (r *Recorder) Tap(samples []float32) {
	if len(samples) == 0 {
		return
	}
	// Zero-copy view of the samples; the ring copies them.
	b := unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*bytesPerFloat)
	n, err := r.ring.TryWrite(b)
	if err != nil {
		r.droppedBytes.Add(uint64(len(b) - n))
	}
}

// Run drains the ring into the encoder until ctx is cancelled, then drains
// whatever is left once more.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.flush()
		case <-ticker.C:
			if err := r.flush(); err != nil {
				return err
			}
		}
	}
}

// flush encodes everything currently in the ring.
func (r *Recorder) flush() error {
	for {
		n, err := r.ring.Read(r.chunk)
		if n > 0 {
			if werr := r.encode(r.chunk[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, ringbuffer.ErrIsEmpty) {
				return nil
			}
			return fmt.Errorf("read ring: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

func (r *Recorder) encode(b []byte) error {
	r.pcm.Data = r.pcm.Data[:0]

	// Complete a sample split across two ring reads.
	if r.carryN > 0 {
		k := copy(r.carry[r.carryN:], b)
		r.carryN += k
		b = b[k:]
		if r.carryN < bytesPerFloat {
			return nil
		}
		r.pcm.Data = append(r.pcm.Data, decodeSample(r.carry[:]))
		r.carryN = 0
	}

	whole := len(b) - len(b)%bytesPerFloat
	for i := 0; i < whole; i += bytesPerFloat {
		r.pcm.Data = append(r.pcm.Data, decodeSample(b[i:]))
	}
	r.carryN = copy(r.carry[:], b[whole:])

	if len(r.pcm.Data) == 0 {
		return nil
	}
	if err := r.enc.Write(r.pcm); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	r.samples.Add(uint64(len(r.pcm.Data)))
	return nil
}

func decodeSample(b []byte) int {
	return toPCM16(math.Float32frombits(binary.NativeEndian.Uint32(b)))
}

// toPCM16 converts a float sample in [-1, 1] to a clipped 16-bit value.
func toPCM16(s float32) int {
	switch {
	case s >= 1:
		return math.MaxInt16
	case s <= -1:
		return -math.MaxInt16
	default:
		return int(s * math.MaxInt16)
	}
}

// Close finalizes the WAV header and closes the underlying file when the
// recorder owns it. Run must have returned before Close is called.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if err := r.flush(); err != nil {
		errs = append(errs, err)
	}
	if err := r.enc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("finalize wav: %w", err))
	}
	if r.closer != nil {
		if err := r.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Samples returns the number of samples encoded so far.
func (r *Recorder) Samples() uint64 {
	return r.samples.Load()
}

// Frames returns the number of frames encoded so far.
func (r *Recorder) Frames() uint64 {
	if r.channels <= 0 {
		return 0
	}
	return r.samples.Load() / uint64(r.channels)
}

// DroppedBytes returns how many bytes the callback could not queue.
func (r *Recorder) DroppedBytes() uint64 {
	return r.droppedBytes.Load()
}
