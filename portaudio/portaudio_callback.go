package portaudio

/*
#cgo pkg-config: portaudio-2.0
#include <portaudio.h>
#include <stdlib.h>
#include <stdint.h>

extern int goCallbackBridge(void *input, void *output,
                            unsigned long frameCount,
                            void *timeInfo,
                            unsigned long statusFlags,
                            long streamId);

// userData points to a malloc'd long containing the stream ID.
static int paStreamCallbackWrapper(const void *input, void *output,
                                   unsigned long frameCount,
                                   const PaStreamCallbackTimeInfo* timeInfo,
                                   PaStreamCallbackFlags statusFlags,
                                   void *userData) {
    long streamId = *(long*)userData;
    return goCallbackBridge((void*)input, output, frameCount,
                           (void*)timeInfo, (unsigned long)statusFlags, streamId);
}

static int openStreamWithCallback(void** stream,
                                  void* inputParameters,
                                  void* outputParameters,
                                  double sampleRate,
                                  unsigned long framesPerBuffer,
                                  unsigned long streamFlags,
                                  void *userData) {
    return Pa_OpenStream((PaStream**)stream,
                        (const PaStreamParameters*)inputParameters,
                        (const PaStreamParameters*)outputParameters,
                        sampleRate, framesPerBuffer,
                        (PaStreamFlags)streamFlags,
                        paStreamCallbackWrapper, userData);
}
*/
import "C"
import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"
)

// StreamCallback is invoked by PortAudio for every buffer.
//
// input is nil for output-only streams and when the host delivered no input
// for this buffer. output is nil for input-only streams. Both are views of
// PortAudio memory valid only until the callback returns.
//
// Returns:
//   - Continue (0) to keep the stream running
//   - Complete (1) to finish gracefully
//   - Abort (2) to stop immediately
//
// IMPORTANT: The callback runs in a real-time context. Avoid:
//   - Memory allocation/deallocation
//   - File I/O or console output
//   - Mutex locks or context switching
//   - Any operations that may block or take unbounded time
type StreamCallback func(
	input, output []byte,
	frameCount uint,
	timeInfo *StreamCallbackTimeInfo,
	statusFlags StreamCallbackFlags,
) StreamCallbackResult

// StreamCallbackResult indicates what the callback wants the stream to do
type StreamCallbackResult int

const (
	// Continue tells PortAudio to continue invoking the callback
	Continue StreamCallbackResult = 0
	// Complete tells PortAudio to finish playing remaining buffers then stop
	Complete StreamCallbackResult = 1
	// Abort tells PortAudio to stop immediately, discarding buffered data
	Abort StreamCallbackResult = 2
)

// StreamCallbackFlags provides information about the stream state
type StreamCallbackFlags uint

const (
	// InputUnderflow indicates input data was lost before callback was called
	InputUnderflow StreamCallbackFlags = 0x00000001
	// InputOverflow indicates input data was discarded after callback returned
	InputOverflow StreamCallbackFlags = 0x00000002
	// OutputUnderflow indicates output buffer had insufficient data
	OutputUnderflow StreamCallbackFlags = 0x00000004
	// OutputOverflow indicates output data was discarded
	OutputOverflow StreamCallbackFlags = 0x00000008
	// PrimingOutput indicates initial output is being generated
	PrimingOutput StreamCallbackFlags = 0x00000010
)

// StreamCallbackTimeInfo provides timing information for the callback
type StreamCallbackTimeInfo struct {
	InputBufferAdcTime  PaTime // Time when first sample of input buffer was captured
	CurrentTime         PaTime // Time when callback was invoked
	OutputBufferDacTime PaTime // Time when first sample of output buffer will be played
}

// streamCallbackInfo is what the bridge needs to size buffers for one stream.
type streamCallbackInfo struct {
	callback StreamCallback
	// inputFrameBytes and outputFrameBytes are 0 when the direction is absent.
	inputFrameBytes  int
	outputFrameBytes int
	// timeInfo is reused across callbacks. PortAudio invokes callbacks
	// sequentially per stream.
	timeInfo StreamCallbackTimeInfo
}

// The registry maps stream IDs to callbacks. Integer IDs avoid passing Go
// pointers to C. Lookups happen on the audio thread, so they must not take
// a lock that Open or Close could be holding.
var (
	callbackRegistry sync.Map // int64 -> *streamCallbackInfo
	nextStreamID     atomic.Int64
)

func registerCallback(info *streamCallbackInfo) int64 {
	id := nextStreamID.Add(1)
	callbackRegistry.Store(id, info)
	return id
}

func unregisterCallback(id int64) {
	callbackRegistry.Delete(id)
}

func getCallbackInfo(id int64) (*streamCallbackInfo, bool) {
	v, ok := callbackRegistry.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*streamCallbackInfo), true
}

func frameBytes(p *PaStreamParameters) int {
	if p == nil {
		return 0
	}
	return p.ChannelCount * GetSampleSize(p.SampleFormat)
}

// OpenCallback opens the stream with a callback function.
//
// framesPerBuffer may be FramesPerBufferUnspecified to let the host pick an
// optimal, possibly varying, buffer size. The callback's input and output
// slices are always sized from the actual frame count.
func (s *PaStream) OpenCallback(framesPerBuffer int, callback StreamCallback) error {
	if s.isOpen {
		return errors.New("stream already open")
	}

	if framesPerBuffer < 0 {
		return errors.New("framesPerBuffer must not be negative")
	}

	if callback == nil {
		return errors.New("callback cannot be nil")
	}

	info := &streamCallbackInfo{
		callback:         callback,
		inputFrameBytes:  frameBytes(s.InputParameters),
		outputFrameBytes: frameBytes(s.OutputParameters),
	}
	streamID := registerCallback(info)

	// Allocate C memory for the stream ID to pass as userData.
	// This avoids unsafe.Pointer(uintptr(int)) which fails Go's checkptr
	// validation under -race.
	streamIDPtr := (*C.long)(C.malloc(C.size_t(unsafe.Sizeof(C.long(0)))))
	*streamIDPtr = C.long(streamID)

	errCode := C.openStreamWithCallback(&s.stream,
		unsafe.Pointer(s.InputParameters.toC()),
		unsafe.Pointer(s.OutputParameters.toC()),
		C.double(s.SampleRate),
		C.ulong(framesPerBuffer),
		C.ulong(s.StreamFlags),
		unsafe.Pointer(streamIDPtr))

	if err := newError(C.PaError(errCode)); err != nil {
		C.free(unsafe.Pointer(streamIDPtr))
		unregisterCallback(streamID)
		return err
	}

	s.callbackID = streamID
	s.callbackIDPtr = unsafe.Pointer(streamIDPtr)
	s.isOpen = true

	return nil
}

// CloseCallback closes the stream and unregisters its callback. It is a
// no-op on a stream that is not open. The stream should be stopped or
// aborted first.
func (s *PaStream) CloseCallback() error {
	if !s.isOpen {
		return nil
	}

	if err := newError(C.Pa_CloseStream(s.stream)); err != nil {
		return err
	}
	s.isOpen = false

	// Unregister only after Pa_CloseStream: the callback may still be
	// running until then.
	unregisterCallback(s.callbackID)
	s.callbackID = 0
	C.free(s.callbackIDPtr)
	s.callbackIDPtr = nil
	return nil
}

// byteView returns n bytes at p, nil when p is nil.
func byteView(p unsafe.Pointer, n int) []byte {
	if p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

//export goCallbackBridge
func goCallbackBridge(input, output unsafe.Pointer,
	frameCount C.ulong,
	timeInfo unsafe.Pointer,
	statusFlags C.ulong,
	streamID C.long) (result C.int) {

	// A panic must not unwind into PortAudio.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC in audio callback (stream %d): %v\n", streamID, r)
			result = C.int(Abort)
		}
	}()

	info, ok := getCallbackInfo(int64(streamID))
	if !ok {
		return C.int(Abort)
	}

	frames := int(frameCount)
	var inputBuf, outputBuf []byte
	if info.inputFrameBytes > 0 {
		inputBuf = byteView(input, frames*info.inputFrameBytes)
	}
	if info.outputFrameBytes > 0 {
		outputBuf = byteView(output, frames*info.outputFrameBytes)
	}

	var timeInfoGo *StreamCallbackTimeInfo
	if timeInfo != nil {
		cTimeInfo := (*C.PaStreamCallbackTimeInfo)(timeInfo)
		info.timeInfo.InputBufferAdcTime = PaTime(cTimeInfo.inputBufferAdcTime)
		info.timeInfo.CurrentTime = PaTime(cTimeInfo.currentTime)
		info.timeInfo.OutputBufferDacTime = PaTime(cTimeInfo.outputBufferDacTime)
		timeInfoGo = &info.timeInfo
	}

	return C.int(info.callback(inputBuf, outputBuf, uint(frameCount), timeInfoGo, StreamCallbackFlags(statusFlags)))
}
