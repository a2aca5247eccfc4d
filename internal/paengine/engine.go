// Package paengine implements session.Engine on top of the portaudio
// bindings. All streams carry interleaved float32 samples.
package paengine

import (
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/drgolem/go-portaudio-demos/internal/callback"
	"github.com/drgolem/go-portaudio-demos/internal/session"
	"github.com/drgolem/go-portaudio-demos/portaudio"
)

const bytesPerSample = 4

// Engine drives the native library. The zero value is not usable; call New.
type Engine struct {
	log *logrus.Entry
}

var _ session.Engine = (*Engine)(nil)

func New(log *logrus.Entry) *Engine {
	return &Engine{log: log}
}

func (e *Engine) Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"function": "Initialize",
		"version":  portaudio.GetVersionText(),
	}).Debug("Audio library initialized")
	return nil
}

func (e *Engine) Terminate() error {
	return portaudio.Terminate()
}

func (e *Engine) DeviceCount() (int, error) {
	return portaudio.GetDeviceCount()
}

func (e *Engine) DeviceInfo(index int) (session.DeviceInfo, error) {
	di, err := portaudio.GetDeviceInfo(index)
	if err != nil {
		return session.DeviceInfo{}, err
	}
	return session.DeviceInfo{
		Index:                    di.Index,
		Name:                     di.Name,
		HostAPI:                  di.HostApiName,
		MaxInputChannels:         di.MaxInputChannels,
		MaxOutputChannels:        di.MaxOutputChannels,
		DefaultSampleRate:        di.DefaultSampleRate,
		DefaultLowInputLatency:   toDuration(di.DefaultLowInputLatency),
		DefaultLowOutputLatency:  toDuration(di.DefaultLowOutputLatency),
		DefaultHighInputLatency:  toDuration(di.DefaultHighInputLatency),
		DefaultHighOutputLatency: toDuration(di.DefaultHighOutputLatency),
	}, nil
}

func (e *Engine) DefaultInputDevice() (int, bool) {
	return portaudio.DefaultInputDevice()
}

func (e *Engine) DefaultOutputDevice() (int, bool) {
	return portaudio.DefaultOutputDevice()
}

func (e *Engine) IsFormatSupported(in, out *session.StreamParameters, sampleRate float64) error {
	return portaudio.IsFormatSupported(toParams(in), toParams(out), sampleRate)
}

// OpenStream opens a callback stream routed to h. The handler sees float32
// views of the native buffers.
func (e *Engine) OpenStream(cfg session.StreamConfig, h callback.Handler) (session.Stream, error) {
	st, err := portaudio.NewStream(toParams(cfg.Input), toParams(cfg.Output), cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	if cfg.ClipOff {
		st.StreamFlags |= portaudio.ClipOff
	}

	framesPerBuffer := cfg.FramesPerBuffer
	if framesPerBuffer == 0 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}
	if err := st.OpenCallback(framesPerBuffer, bridge(h)); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"function":          "OpenStream",
		"sample_rate":       cfg.SampleRate,
		"frames_per_buffer": cfg.FramesPerBuffer,
		"duplex":            cfg.Input != nil && cfg.Output != nil,
	}).Debug("Stream opened")

	return &stream{st: st}, nil
}

// bridge adapts a Handler to the byte-oriented native callback. It runs on
// the audio thread and does not allocate.
func bridge(h callback.Handler) portaudio.StreamCallback {
	return func(input, output []byte, frameCount uint, _ *portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) portaudio.StreamCallbackResult {
		res := h.Process(float32s(input), float32s(output), int(frameCount), callback.Status(flags))
		return portaudio.StreamCallbackResult(res)
	}
}

// float32s reinterprets native-endian float32 sample bytes. nil stays nil;
// an empty buffer stays empty.
func float32s(b []byte) []float32 {
	if b == nil {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(b))), len(b)/bytesPerSample)
}

func toParams(p *session.StreamParameters) *portaudio.PaStreamParameters {
	if p == nil {
		return nil
	}
	return &portaudio.PaStreamParameters{
		DeviceIndex:      p.Device,
		ChannelCount:     p.Channels,
		SampleFormat:     portaudio.SampleFmtFloat32,
		SuggestedLatency: portaudio.PaTime(p.SuggestedLatency.Seconds()),
	}
}

func toDuration(t portaudio.PaTime) time.Duration {
	return time.Duration(float64(t) * float64(time.Second))
}

type stream struct {
	st *portaudio.PaStream
}

func (s *stream) Start() error { return s.st.StartStream() }
func (s *stream) Abort() error { return s.st.AbortStream() }
func (s *stream) Close() error { return s.st.CloseCallback() }

func (s *stream) Active() bool {
	active, err := s.st.IsActive()
	return err == nil && active
}

func (s *stream) Info() (session.StreamInfo, bool) {
	si, err := s.st.Info()
	if err != nil {
		return session.StreamInfo{}, false
	}
	return session.StreamInfo{
		InputLatency:  toDuration(si.InputLatency),
		OutputLatency: toDuration(si.OutputLatency),
		SampleRate:    si.SampleRate,
	}, true
}
