// Package session is the stream lifecycle driver behind each demo command.
//
// Every mode follows the same sequence against an Engine:
//
//	initialize → select device(s) → validate channels → [check format] →
//	open → start → wait → abort → close → terminate
//
// Each fallible step returns a *Error naming the step. Resources are
// released in reverse order of acquisition on every exit path, and release
// failures are only logged.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drgolem/go-portaudio-demos/internal/callback"
	"github.com/drgolem/go-portaudio-demos/internal/config"
	"github.com/drgolem/go-portaudio-demos/internal/recorder"
	"github.com/drgolem/go-portaudio-demos/internal/report"
)

// activePollInterval is how often Wait checks whether the stream is still
// running.
const activePollInterval = 100 * time.Millisecond

// recordRingSpan is how much audio the recording ring can hold.
const recordRingSpan = 2 * time.Second

// Recorder is the WAV tap used by the capture modes.
type Recorder interface {
	callback.Tap
	Run(ctx context.Context) error
	Close() error
	Frames() uint64
	DroppedBytes() uint64
}

// RecorderFactory creates a recorder for path.
type RecorderFactory func(path string, sampleRate float64, channels int) (Recorder, error)

func createRecorder(path string, sampleRate float64, channels int) (Recorder, error) {
	rate := int(sampleRate)
	rec, err := recorder.Create(path, rate, channels, recorder.RingBytes(rate, channels, recordRingSpan))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Summary describes a finished capture or duplex run.
type Summary struct {
	Invocations        uint64
	Report             report.Stats
	EventsDropped      uint64
	Stream             StreamInfo
	RecordedFrames     uint64
	RecordDroppedBytes uint64
}

// Session runs demo modes against an Engine with one immutable Config.
type Session struct {
	eng         Engine
	cfg         config.Config
	log         *logrus.Entry
	out         io.Writer
	newRecorder RecorderFactory
	wait        func(ctx context.Context, d time.Duration, s Stream)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the log entry every message is derived from.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Session) { s.log = log }
}

// WithOutput sets where the device report is written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.out = w }
}

// WithRecorderFactory replaces the WAV recorder used when
// Config.RecordPath is set.
func WithRecorderFactory(f RecorderFactory) Option {
	return func(s *Session) { s.newRecorder = f }
}

// New creates a session.
func New(eng Engine, cfg config.Config, opts ...Option) *Session {
	s := &Session{
		eng:         eng,
		cfg:         cfg,
		log:         logrus.NewEntry(logrus.StandardLogger()),
		out:         os.Stdout,
		newRecorder: createRecorder,
		wait:        Wait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until d elapses, ctx is cancelled, or the stream stops on its
// own. d == 0 waits for cancellation or the stream only.
func Wait(ctx context.Context, d time.Duration, s Stream) {
	var deadline <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		deadline = t.C
	}

	ticker := time.NewTicker(activePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			if s != nil && !s.Active() {
				return
			}
		}
	}
}

// ListDevices writes one line per device, in index order, with its name,
// channel limits and default sample rate.
func (s *Session) ListDevices(ctx context.Context) error {
	log := s.log.WithField("function", "ListDevices")
	g := newGuard(log)
	defer g.release()

	if err := s.initialize(g); err != nil {
		return err
	}

	count, err := s.eng.DeviceCount()
	if err != nil {
		return fail(KindDeviceCount, err)
	}
	log.WithField("device_count", count).Debug("Enumerating devices")

	defIn, hasIn := s.eng.DefaultInputDevice()
	defOut, hasOut := s.eng.DefaultOutputDevice()

	fmt.Fprintf(s.out, "device count: %d\n", count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		di, err := s.eng.DeviceInfo(i)
		if err != nil {
			return fail(KindDeviceInfo, err)
		}

		marker := ""
		if hasIn && i == defIn {
			marker += " [default input]"
		}
		if hasOut && i == defOut {
			marker += " [default output]"
		}
		fmt.Fprintf(s.out, "[%d] %s%s\n", di.Index, di.Name, marker)
		fmt.Fprintf(s.out, "    max input channels: %d, max output channels: %d, default sample rate: %.0f Hz\n",
			di.MaxInputChannels, di.MaxOutputChannels, di.DefaultSampleRate)
	}
	return nil
}

// Capture opens an input stream with the configured rate, buffer size and
// channel count, and reports peak/RMS of every buffer.
func (s *Session) Capture(ctx context.Context) (*Summary, error) {
	log := s.log.WithField("function", "Capture")
	if err := s.validate(); err != nil {
		return nil, err
	}

	g := newGuard(log)
	defer g.release()

	if err := s.initialize(g); err != nil {
		return nil, err
	}

	dev, err := s.inputDevice()
	if err != nil {
		return nil, err
	}
	if err := checkChannels(dev, s.cfg.Channels, dev.MaxInputChannels, "input"); err != nil {
		return nil, err
	}

	sc := StreamConfig{
		Input: &StreamParameters{
			Device:           dev.Index,
			Channels:         s.cfg.Channels,
			SuggestedLatency: dev.DefaultLowInputLatency,
		},
		SampleRate:      s.cfg.SampleRate,
		FramesPerBuffer: s.cfg.FramesPerBuffer,
	}
	return s.capture(ctx, g, log, dev, sc)
}

// CaptureAuto is Capture with parameters taken from the default input
// device: its default sample rate and low input latency, an engine-chosen
// buffer size, and mono input.
func (s *Session) CaptureAuto(ctx context.Context) (*Summary, error) {
	log := s.log.WithField("function", "CaptureAuto")
	if err := s.validate(); err != nil {
		return nil, err
	}

	g := newGuard(log)
	defer g.release()

	if err := s.initialize(g); err != nil {
		return nil, err
	}

	dev, err := s.inputDevice()
	if err != nil {
		return nil, err
	}
	if dev.MaxInputChannels <= 0 {
		return nil, failf(KindNoChannels, "device %d (%s) reports no input channels", dev.Index, dev.Name)
	}

	sc := StreamConfig{
		Input: &StreamParameters{
			Device:           dev.Index,
			Channels:         min(1, dev.MaxInputChannels),
			SuggestedLatency: dev.DefaultLowInputLatency,
		},
		SampleRate:      dev.DefaultSampleRate,
		FramesPerBuffer: config.FramesPerBufferUnspecified,
	}
	return s.capture(ctx, g, log, dev, sc)
}

// Duplex opens a full-duplex stream that plays the phase-inverted input.
func (s *Session) Duplex(ctx context.Context) (*Summary, error) {
	log := s.log.WithField("function", "Duplex")
	if err := s.validate(); err != nil {
		return nil, err
	}

	g := newGuard(log)
	defer g.release()

	if err := s.initialize(g); err != nil {
		return nil, err
	}

	inDev, err := s.inputDevice()
	if err != nil {
		return nil, err
	}
	outDev, err := s.outputDevice()
	if err != nil {
		return nil, err
	}

	channels := s.cfg.Channels
	if err := checkChannels(inDev, channels, inDev.MaxInputChannels, "input"); err != nil {
		return nil, err
	}
	if err := checkChannels(outDev, channels, outDev.MaxOutputChannels, "output"); err != nil {
		return nil, err
	}

	in := &StreamParameters{
		Device:           inDev.Index,
		Channels:         channels,
		SuggestedLatency: inDev.DefaultLowInputLatency,
	}
	out := &StreamParameters{
		Device:           outDev.Index,
		Channels:         channels,
		SuggestedLatency: outDev.DefaultLowOutputLatency,
	}
	if err := s.eng.IsFormatSupported(in, out, s.cfg.SampleRate); err != nil {
		return nil, fail(KindFormatUnsupported, err)
	}

	log.WithFields(logrus.Fields{
		"input_device":  inDev.Name,
		"output_device": outDev.Name,
		"channels":      channels,
		"sample_rate":   s.cfg.SampleRate,
	}).Info("Opening duplex stream")

	events := callback.NewEvents(s.cfg.EventBuffer)
	inv := callback.NewInverter(&callback.Context{Channels: channels}, events)

	sc := StreamConfig{
		Input:           in,
		Output:          out,
		SampleRate:      s.cfg.SampleRate,
		FramesPerBuffer: s.cfg.FramesPerBuffer,
		ClipOff:         true,
	}
	sum, err := s.runStream(ctx, log, sc, inv, events, nil)
	if err != nil {
		return nil, err
	}
	sum.Invocations = inv.Invocations()
	logSummary(log, sum)
	return sum, nil
}

func (s *Session) capture(ctx context.Context, g *guard, log *logrus.Entry, dev DeviceInfo, sc StreamConfig) (*Summary, error) {
	channels := sc.Input.Channels
	log.WithFields(logrus.Fields{
		"device":            dev.Name,
		"channels":          channels,
		"sample_rate":       sc.SampleRate,
		"frames_per_buffer": sc.FramesPerBuffer,
	}).Info("Opening capture stream")

	events := callback.NewEvents(s.cfg.EventBuffer)

	var opts []callback.MeterOption
	var rec Recorder
	if s.cfg.RecordPath != "" {
		var err error
		rec, err = s.newRecorder(s.cfg.RecordPath, sc.SampleRate, channels)
		if err != nil {
			return nil, &Error{Kind: KindRecord, Detail: err.Error(), Err: err}
		}
		g.push("close recording", KindRecord, rec.Close)
		opts = append(opts, callback.WithTap(rec))
		log.WithField("path", s.cfg.RecordPath).Info("Recording input")
	}

	meter := callback.NewMeter(&callback.Context{Channels: channels}, events, opts...)
	sum, err := s.runStream(ctx, log, sc, meter, events, rec)
	if err != nil {
		return nil, err
	}
	sum.Invocations = meter.Invocations()
	logSummary(log, sum)
	return sum, nil
}

// runStream opens, starts and waits on a stream, then aborts and closes it.
// The reporter (and recorder, when set) run for the lifetime of the stream
// and are drained after the abort.
func (s *Session) runStream(ctx context.Context, log *logrus.Entry, sc StreamConfig, h callback.Handler, events *callback.Events, rec Recorder) (*Summary, error) {
	sg := newGuard(log)
	defer sg.release()

	stream, err := s.eng.OpenStream(sc, h)
	if err != nil {
		return nil, fail(KindStreamOpen, err)
	}
	sg.push("close stream", KindStreamClose, stream.Close)

	// Workers outlive ctx so that events queued before the abort are still
	// drained.
	workers, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	rep := report.New(events, log, report.WithInterval(s.cfg.ReportInterval))
	wg.Add(1)
	go func() {
		defer wg.Done()
		rep.Run(workers)
	}()
	if rec != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec.Run(workers); err != nil {
				log.WithError(err).Warn("Recorder stopped")
			}
		}()
	}
	sg.push("stop workers", 0, func() error {
		stopWorkers()
		wg.Wait()
		return nil
	})

	if err := stream.Start(); err != nil {
		return nil, fail(KindStreamStart, err)
	}
	sg.push("abort stream", KindStreamStop, stream.Abort)

	info, ok := stream.Info()
	if ok {
		log.WithFields(logrus.Fields{
			"input_latency":  info.InputLatency,
			"output_latency": info.OutputLatency,
			"sample_rate":    info.SampleRate,
		}).Info("Stream started")
	}

	if s.cfg.Duration > 0 {
		log.WithField("duration", s.cfg.Duration).Info("Running, press Ctrl-C to stop early")
	} else {
		log.Info("Running, press Ctrl-C to stop")
	}
	s.wait(ctx, s.cfg.Duration, stream)

	sg.release()

	sum := &Summary{
		Report:        rep.Stats(),
		EventsDropped: events.Dropped(),
		Stream:        info,
	}
	if rec != nil {
		sum.RecordedFrames = rec.Frames()
		sum.RecordDroppedBytes = rec.DroppedBytes()
	}
	return sum, nil
}

func (s *Session) validate() error {
	if err := s.cfg.Validate(); err != nil {
		return &Error{Kind: KindConfig, Detail: err.Error(), Err: err}
	}
	return nil
}

func (s *Session) initialize(g *guard) error {
	if err := s.eng.Initialize(); err != nil {
		return fail(KindInit, err)
	}
	g.push("terminate", KindTerminate, s.eng.Terminate)
	return nil
}

func (s *Session) inputDevice() (DeviceInfo, error) {
	idx := s.cfg.InputDevice
	if idx == config.DefaultDevice {
		var ok bool
		if idx, ok = s.eng.DefaultInputDevice(); !ok {
			return DeviceInfo{}, failf(KindNoDefaultInput, "host reports no default input device")
		}
	}
	di, err := s.eng.DeviceInfo(idx)
	if err != nil {
		return DeviceInfo{}, fail(KindDeviceInfo, err)
	}
	return di, nil
}

func (s *Session) outputDevice() (DeviceInfo, error) {
	idx := s.cfg.OutputDevice
	if idx == config.DefaultDevice {
		var ok bool
		if idx, ok = s.eng.DefaultOutputDevice(); !ok {
			return DeviceInfo{}, failf(KindNoDefaultOutput, "host reports no default output device")
		}
	}
	di, err := s.eng.DeviceInfo(idx)
	if err != nil {
		return DeviceInfo{}, fail(KindDeviceInfo, err)
	}
	return di, nil
}

// checkChannels validates a request against a device limit before any
// stream is opened.
func checkChannels(dev DeviceInfo, requested, limit int, direction string) error {
	if limit <= 0 {
		return failf(KindNoChannels, "device %d (%s) reports no %s channels", dev.Index, dev.Name, direction)
	}
	if requested > limit {
		return failf(KindChannelCount, "requested %d %s channels, device %d (%s) supports %d",
			requested, direction, dev.Index, dev.Name, limit)
	}
	return nil
}

func logSummary(log *logrus.Entry, sum *Summary) {
	fields := logrus.Fields{
		"callbacks":      sum.Invocations,
		"buffers":        sum.Report.Buffers,
		"peak":           sum.Report.Peak,
		"xruns":          sum.Report.StatusEvents,
		"missing_input":  sum.Report.NoInput,
		"events_dropped": sum.EventsDropped,
	}
	if sum.RecordedFrames > 0 || sum.RecordDroppedBytes > 0 {
		fields["recorded_frames"] = sum.RecordedFrames
		fields["record_dropped_bytes"] = sum.RecordDroppedBytes
	}
	log.WithFields(fields).Info("Stream finished")
}
