// Package portaudio provides Go bindings for the parts of PortAudio the
// demos use: library lifetime, device enumeration, format checks and
// callback-driven input, output and full-duplex streams.
//
// # Quick Start
//
//	portaudio.Initialize()
//	defer portaudio.Terminate()
//
//	dev, _ := portaudio.DefaultInputDevice()
//	info, _ := portaudio.GetDeviceInfo(dev)
//	stream, _ := portaudio.NewInputStream(portaudio.PaStreamParameters{
//	    DeviceIndex:      dev,
//	    ChannelCount:     1,
//	    SampleFormat:     portaudio.SampleFmtFloat32,
//	    SuggestedLatency: info.DefaultLowInputLatency,
//	}, info.DefaultSampleRate)
//	stream.OpenCallback(portaudio.FramesPerBufferUnspecified, callback)
//	defer stream.CloseCallback()
//	stream.StartStream()
//
// # Thread Safety
//
// Initialize and Terminate are reference counted and safe for concurrent
// use. Each PaStream must be driven by one goroutine at a time. Callbacks
// run on a PortAudio thread, not a goroutine the caller controls.
//
// # Audio Callback Constraints
//
// In callbacks, you MUST:
//   - Process audio quickly (well under the buffer duration)
//   - Use pre-allocated buffers only
//   - Avoid memory allocation (make, new, append)
//   - Avoid blocking operations (mutex, I/O, channel sends)
//
// Violating these constraints causes glitches and dropouts.
package portaudio

/*
#cgo pkg-config: portaudio-2.0
#include <portaudio.h>

PaDeviceIndex Pa_GetDefaultInputDevice(void);
PaDeviceIndex Pa_GetDefaultOutputDevice(void);
const PaHostErrorInfo* Pa_GetLastHostErrorInfo(void);
*/
import "C"
import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

var (
	// initialized tracks the initialization reference count
	initialized int
	// initMu protects the initialized counter
	initMu sync.Mutex
)

type PaSampleFormat int

const (
	SampleFmtFloat32 PaSampleFormat = C.paFloat32
	SampleFmtInt32   PaSampleFormat = C.paInt32
	SampleFmtInt24   PaSampleFormat = C.paInt24
	SampleFmtInt16   PaSampleFormat = C.paInt16
	SampleFmtInt8    PaSampleFormat = C.paInt8
	SampleFmtUInt8   PaSampleFormat = C.paUInt8
)

// PortAudio error codes used by the bindings themselves.
const (
	ErrNoError       = C.paNoError
	ErrInvalidDevice = C.paInvalidDevice
	ErrBadStreamPtr  = C.paBadStreamPtr
)

// NoDevice is the index PortAudio uses for "no such device".
const NoDevice = int(C.paNoDevice)

// FramesPerBufferUnspecified lets PortAudio pick the buffer size, which may
// then vary between callbacks.
const FramesPerBufferUnspecified = int(C.paFramesPerBufferUnspecified)

// PaStreamFlags specify special options when opening a stream
type PaStreamFlags int

const (
	// NoFlag is the default, no special flags set
	NoFlag PaStreamFlags = 0x00000000
	// ClipOff disables clipping of out of range output samples
	ClipOff PaStreamFlags = 0x00000001
	// DitherOff disables dithering when converting from float to integer samples
	DitherOff PaStreamFlags = 0x00000002
	// NeverDropInput prevents PortAudio from dropping input data in full-duplex
	// streams when the callback is slow
	NeverDropInput PaStreamFlags = 0x00000004
)

// PaTime represents time in seconds as used by PortAudio (maps to C double).
type PaTime float64

type PaStreamParameters struct {
	DeviceIndex      int
	ChannelCount     int
	SampleFormat     PaSampleFormat
	SuggestedLatency PaTime
}

func (p *PaStreamParameters) toC() *C.PaStreamParameters {
	if p == nil {
		return nil
	}
	return &C.PaStreamParameters{
		device:           C.int(p.DeviceIndex),
		channelCount:     C.int(p.ChannelCount),
		sampleFormat:     C.PaSampleFormat(p.SampleFormat),
		suggestedLatency: C.double(p.SuggestedLatency),
	}
}

// PaError is an error code returned by PortAudio.
type PaError struct {
	Code int
}

func (e *PaError) Error() string {
	return GetErrorText(e.Code)
}

// ErrorCode returns the native PortAudio error code.
func (e *PaError) ErrorCode() int { return e.Code }

// ErrorText returns PortAudio's message for the code.
func (e *PaError) ErrorText() string { return GetErrorText(e.Code) }

// UnanticipatedHostError represents a host-specific error that occurred
// within the underlying audio API (ALSA, CoreAudio, WASAPI, etc.).
type UnanticipatedHostError struct {
	Code          int
	Text          string
	HostApiType   int
	HostErrorCode int
	HostErrorText string
}

func (e *UnanticipatedHostError) Error() string {
	if e.HostErrorText != "" {
		return fmt.Sprintf("%s [Host API error %d: %s]", e.Text, e.HostErrorCode, e.HostErrorText)
	}
	return fmt.Sprintf("%s [Host API error %d]", e.Text, e.HostErrorCode)
}

// ErrorCode returns the PortAudio error code (paUnanticipatedHostError).
func (e *UnanticipatedHostError) ErrorCode() int { return e.Code }

// ErrorText returns the PortAudio message with the host details appended.
func (e *UnanticipatedHostError) ErrorText() string { return e.Error() }

func GetVersion() int {
	return int(C.Pa_GetVersion())
}

func GetVersionText() string {
	vi := C.Pa_GetVersionInfo()
	return C.GoString(vi.versionText)
}

func GetErrorText(errorCode int) string {
	return C.GoString(C.Pa_GetErrorText(C.PaError(errorCode)))
}

// newError creates an appropriate error from a PortAudio error code.
// For unanticipated host errors, it extracts detailed host-specific information.
func newError(code C.PaError) error {
	if code >= C.paNoError {
		return nil
	}

	if code == C.paUnanticipatedHostError {
		hostErr := C.Pa_GetLastHostErrorInfo()
		if hostErr != nil {
			return &UnanticipatedHostError{
				Code:          int(code),
				Text:          C.GoString(C.Pa_GetErrorText(code)),
				HostApiType:   int(hostErr.hostApiType),
				HostErrorCode: int(hostErr.errorCode),
				HostErrorText: C.GoString(hostErr.errorText),
			}
		}
	}

	return &PaError{Code: int(code)}
}

// Initialize initializes the PortAudio library.
//
// Calls are reference counted: each Initialize must be matched by a
// Terminate, and the library is only torn down by the last one.
func Initialize() error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized == 0 {
		if err := newError(C.Pa_Initialize()); err != nil {
			return err
		}
	}
	initialized++
	return nil
}

// Terminate releases the library once the reference count reaches zero.
// Any streams still open at that point are closed by PortAudio.
func Terminate() error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized == 0 {
		return nil
	}

	initialized--
	if initialized == 0 {
		if err := newError(C.Pa_Terminate()); err != nil {
			initialized++ // restore count on error
			return err
		}
	}
	return nil
}

func GetDeviceCount() (int, error) {
	dc := C.Pa_GetDeviceCount()
	if dc < 0 {
		return 0, newError(C.PaError(dc))
	}
	return int(dc), nil
}

// DefaultInputDevice returns the default input device index, or false when
// the host has none.
func DefaultInputDevice() (int, bool) {
	index := int(C.Pa_GetDefaultInputDevice())
	return index, index != NoDevice
}

// DefaultOutputDevice returns the default output device index, or false
// when the host has none.
func DefaultOutputDevice() (int, bool) {
	index := int(C.Pa_GetDefaultOutputDevice())
	return index, index != NoDevice
}

type DeviceInfo struct {
	// Index is the PortAudio device index used when opening streams
	Index        int
	Name         string
	HostApiIndex int
	// HostApiName is the name of the host API the device belongs to
	HostApiName       string
	MaxInputChannels  int
	MaxOutputChannels int

	DefaultLowInputLatency   PaTime
	DefaultLowOutputLatency  PaTime
	DefaultHighInputLatency  PaTime
	DefaultHighOutputLatency PaTime
	DefaultSampleRate        float64
}

func GetDeviceInfo(deviceIdx int) (*DeviceInfo, error) {
	di := C.Pa_GetDeviceInfo(C.PaDeviceIndex(deviceIdx))
	if di == nil {
		return nil, &PaError{Code: int(C.paInvalidDevice)}
	}

	devInfo := DeviceInfo{
		Index:                    deviceIdx,
		Name:                     C.GoString(di.name),
		HostApiIndex:             int(di.hostApi),
		MaxInputChannels:         int(di.maxInputChannels),
		MaxOutputChannels:        int(di.maxOutputChannels),
		DefaultLowInputLatency:   PaTime(di.defaultLowInputLatency),
		DefaultLowOutputLatency:  PaTime(di.defaultLowOutputLatency),
		DefaultHighInputLatency:  PaTime(di.defaultHighInputLatency),
		DefaultHighOutputLatency: PaTime(di.defaultHighOutputLatency),
		DefaultSampleRate:        float64(di.defaultSampleRate),
	}
	if hi := C.Pa_GetHostApiInfo(di.hostApi); hi != nil {
		devInfo.HostApiName = C.GoString(hi.name)
	}

	return &devInfo, nil
}

// IsFormatSupported reports whether the device(s) accept the parameters.
// Either side may be nil for half-duplex checks.
func IsFormatSupported(inputParameters, outputParameters *PaStreamParameters, sampleRate float64) error {
	errCode := C.Pa_IsFormatSupported(inputParameters.toC(), outputParameters.toC(), C.double(sampleRate))
	if errCode != C.paFormatIsSupported {
		return newError(errCode)
	}
	return nil
}

type PaStream struct {
	stream           unsafe.Pointer
	isOpen           bool
	InputParameters  *PaStreamParameters // nil for output-only streams
	OutputParameters *PaStreamParameters // nil for input-only streams
	SampleRate       float64
	// StreamFlags specifies special options for the stream. Default is NoFlag.
	StreamFlags PaStreamFlags
	// callbackID is the registry key of the stream's callback (internal use)
	callbackID int64
	// callbackIDPtr stores the C-allocated pointer to the stream ID (for cleanup)
	callbackIDPtr unsafe.Pointer
}

// NewStream prepares a stream with the given directions. At least one of
// inParams and outParams must be set; the format is checked here so that
// OpenCallback only fails for reasons the host discovers late.
func NewStream(inParams, outParams *PaStreamParameters, sampleRate float64) (*PaStream, error) {
	if inParams == nil && outParams == nil {
		return nil, errors.New("stream needs input or output parameters")
	}
	if err := IsFormatSupported(inParams, outParams, sampleRate); err != nil {
		return nil, err
	}

	st := PaStream{SampleRate: sampleRate}
	if inParams != nil {
		in := *inParams
		st.InputParameters = &in
	}
	if outParams != nil {
		out := *outParams
		st.OutputParameters = &out
	}
	return &st, nil
}

// NewInputStream prepares an input-only (capture) stream.
func NewInputStream(inParams PaStreamParameters, sampleRate float64) (*PaStream, error) {
	return NewStream(&inParams, nil, sampleRate)
}

// NewOutputStream prepares an output-only (playback) stream.
func NewOutputStream(outParams PaStreamParameters, sampleRate float64) (*PaStream, error) {
	return NewStream(nil, &outParams, sampleRate)
}

// NewDuplexStream prepares a full-duplex stream, where each callback sees
// the input buffer and fills the output buffer for the same frames.
func NewDuplexStream(inParams, outParams PaStreamParameters, sampleRate float64) (*PaStream, error) {
	return NewStream(&inParams, &outParams, sampleRate)
}

func (s *PaStream) StartStream() error {
	if !s.isOpen {
		return &PaError{Code: int(C.paBadStreamPtr)}
	}
	return newError(C.Pa_StartStream(s.stream))
}

// StopStream stops the stream after queued output has played.
func (s *PaStream) StopStream() error {
	if !s.isOpen {
		return &PaError{Code: int(C.paBadStreamPtr)}
	}
	return newError(C.Pa_StopStream(s.stream))
}

// AbortStream stops the stream immediately, discarding queued buffers. When
// it returns the callback is no longer running.
func (s *PaStream) AbortStream() error {
	if !s.isOpen {
		return &PaError{Code: int(C.paBadStreamPtr)}
	}
	return newError(C.Pa_AbortStream(s.stream))
}

// IsActive reports whether the callback is still being invoked. It turns
// false once the callback returns Complete or Abort, or after a stop.
func (s *PaStream) IsActive() (bool, error) {
	if !s.isOpen {
		return false, &PaError{Code: int(C.paBadStreamPtr)}
	}
	rc := C.Pa_IsStreamActive(s.stream)
	if rc < 0 {
		return false, newError(rc)
	}
	return rc == 1, nil
}

// StreamInfo is what PortAudio reports about an open stream. Latencies are
// the values actually in effect, which may differ from the suggestions.
type StreamInfo struct {
	InputLatency  PaTime
	OutputLatency PaTime
	SampleRate    float64
}

func (s *PaStream) Info() (*StreamInfo, error) {
	if !s.isOpen {
		return nil, &PaError{Code: int(C.paBadStreamPtr)}
	}
	si := C.Pa_GetStreamInfo(s.stream)
	if si == nil {
		return nil, &PaError{Code: int(C.paBadStreamPtr)}
	}
	return &StreamInfo{
		InputLatency:  PaTime(si.inputLatency),
		OutputLatency: PaTime(si.outputLatency),
		SampleRate:    float64(si.sampleRate),
	}, nil
}

// GetSampleSize returns the size in bytes for a given sample format.
// Returns 0 for unknown formats.
func GetSampleSize(format PaSampleFormat) int {
	switch format {
	case SampleFmtFloat32, SampleFmtInt32:
		return 4
	case SampleFmtInt24:
		return 3
	case SampleFmtInt16:
		return 2
	case SampleFmtInt8, SampleFmtUInt8:
		return 1
	default:
		return 0
	}
}
