// Package report drains callback events on the control goroutine and logs
// them.
package report

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drgolem/go-portaudio-demos/internal/callback"
)

// DefaultPollInterval is how often the ring is drained.
const DefaultPollInterval = 50 * time.Millisecond

// Stats accumulates over the whole run.
type Stats struct {
	Buffers      uint64
	Frames       uint64
	StatusEvents uint64
	NoInput      uint64
	Aborted      bool
	Peak         float32
	// Flags is the union of every status bitset observed.
	Flags callback.Status
}

// window aggregates metrics between two log lines.
type window struct {
	buffers    uint64
	frames     uint64
	peak       float32
	sumSquares float64 // sum of rms^2 * frames
	firstSeq   uint64
}

func (w *window) add(e callback.Event) {
	if w.buffers == 0 {
		w.firstSeq = e.Seq
	}
	w.buffers++
	w.frames += uint64(e.Frames)
	if e.Peak > w.peak {
		w.peak = e.Peak
	}
	w.sumSquares += e.RMS * e.RMS * float64(e.Frames)
}

// rms is the level over every frame in the window.
func (w *window) rms() float64 {
	if w.frames == 0 {
		return 0
	}
	return math.Sqrt(w.sumSquares / float64(w.frames))
}

// Reporter logs events read from a callback event ring.
type Reporter struct {
	events   *callback.Events
	log      *logrus.Entry
	interval time.Duration
	poll     time.Duration

	stats   Stats
	win     window
	winFrom time.Time
	now     func() time.Time
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithInterval aggregates metrics into one line per d. 0 logs every buffer.
func WithInterval(d time.Duration) Option {
	return func(r *Reporter) { r.interval = d }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.poll = d
		}
	}
}

// New creates a reporter for events logging to log.
func New(events *callback.Events, log *logrus.Entry, opts ...Option) *Reporter {
	r := &Reporter{
		events: events,
		log:    log,
		poll:   DefaultPollInterval,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the ring every poll interval until ctx is cancelled, then
// drains it a final time and flushes the pending metrics window.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	r.winFrom = r.now()
	for {
		select {
		case <-ctx.Done():
			r.Poll()
			r.flush()
			return
		case <-ticker.C:
			r.Poll()
		}
	}
}

// Poll handles every queued event and emits the metrics window when it is
// due. It must not be called concurrently with Run.
func (r *Reporter) Poll() int {
	n := r.events.Drain(r.handle)
	if r.interval > 0 && r.now().Sub(r.winFrom) >= r.interval {
		r.flush()
	}
	return n
}

// Stats returns the totals so far. Call after Run has returned.
func (r *Reporter) Stats() Stats {
	return r.stats
}

func (r *Reporter) handle(e callback.Event) {
	switch e.Kind {
	case callback.EventMetrics:
		r.stats.Buffers++
		r.stats.Frames += uint64(e.Frames)
		if e.Peak > r.stats.Peak {
			r.stats.Peak = e.Peak
		}
		if r.interval <= 0 {
			r.log.WithFields(logrus.Fields{
				"seq":    e.Seq,
				"frames": e.Frames,
				"peak":   e.Peak,
				"rms":    e.RMS,
			}).Info("Input level")
			return
		}
		r.win.add(e)

	case callback.EventStatus:
		r.stats.StatusEvents++
		r.stats.Flags |= e.Status
		r.log.WithFields(logrus.Fields{
			"seq":    e.Seq,
			"status": e.Status.String(),
		}).Warn("Stream reported xrun")

	case callback.EventNoInput:
		r.stats.NoInput++
		r.log.WithFields(logrus.Fields{
			"seq":    e.Seq,
			"frames": e.Frames,
		}).Warn("Input buffer missing, skipping buffer")

	case callback.EventNoContext:
		r.stats.Aborted = true
		r.log.WithField("seq", e.Seq).Error("Callback context missing, stream aborted")
	}
}

// flush logs the pending metrics window, if any, and starts a new one.
func (r *Reporter) flush() {
	defer func() {
		r.win = window{}
		r.winFrom = r.now()
	}()

	if r.win.buffers == 0 {
		return
	}
	r.log.WithFields(logrus.Fields{
		"seq":     r.win.firstSeq,
		"buffers": r.win.buffers,
		"frames":  r.win.frames,
		"peak":    r.win.peak,
		"rms":     r.win.rms(),
	}).Info("Input level")
}
