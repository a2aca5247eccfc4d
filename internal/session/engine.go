package session

import (
	"time"

	"github.com/drgolem/go-portaudio-demos/internal/callback"
)

// DeviceInfo describes one audio device as reported by the engine.
type DeviceInfo struct {
	Index                    int
	Name                     string
	HostAPI                  string
	MaxInputChannels         int
	MaxOutputChannels        int
	DefaultSampleRate        float64
	DefaultLowInputLatency   time.Duration
	DefaultLowOutputLatency  time.Duration
	DefaultHighInputLatency  time.Duration
	DefaultHighOutputLatency time.Duration
}

// StreamParameters describes one direction of a stream. Samples are always
// interleaved float32.
type StreamParameters struct {
	Device           int
	Channels         int
	SuggestedLatency time.Duration
}

// StreamConfig is everything OpenStream needs besides the handler.
type StreamConfig struct {
	// Input and Output are nil for output-only and input-only streams.
	Input  *StreamParameters
	Output *StreamParameters

	SampleRate float64
	// FramesPerBuffer of 0 lets the engine choose.
	FramesPerBuffer int
	// ClipOff disables output clipping.
	ClipOff bool
}

// StreamInfo is what the engine reports about an open stream.
type StreamInfo struct {
	InputLatency  time.Duration
	OutputLatency time.Duration
	SampleRate    float64
}

// Stream is an open engine stream.
type Stream interface {
	Start() error
	// Abort stops the stream immediately, discarding queued buffers.
	Abort() error
	Close() error
	Info() (StreamInfo, bool)
	// Active reports whether the stream is still running. It returns false
	// once the callback has completed or aborted the stream.
	Active() bool
}

// Engine is the subset of the native audio library the demos drive.
//
// Errors returned by an Engine should implement CodedError when they come
// from the library, so that the numeric code and text reach the user.
type Engine interface {
	Initialize() error
	Terminate() error

	DeviceCount() (int, error)
	DeviceInfo(index int) (DeviceInfo, error)
	// DefaultInputDevice and DefaultOutputDevice return false when the host
	// has no such device.
	DefaultInputDevice() (int, bool)
	DefaultOutputDevice() (int, bool)

	IsFormatSupported(in, out *StreamParameters, sampleRate float64) error
	OpenStream(cfg StreamConfig, h callback.Handler) (Stream, error)
}
