package portaudio

import (
	"sync/atomic"
	"testing"
	"time"
	"unsafe"
)

// initOrSkip initializes the library, skipping when the host has no audio
// subsystem at all.
func initOrSkip(t *testing.T) {
	t.Helper()
	if err := Initialize(); err != nil {
		t.Skipf("Initialize failed (no audio subsystem?): %v", err)
	}
	t.Cleanup(func() { _ = Terminate() })
}

// TestInitializeTerminate tests basic library initialization and termination
func TestInitializeTerminate(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Skipf("Initialize failed: %v", err)
	}
	if err := Terminate(); err != nil {
		t.Errorf("Terminate failed: %v", err)
	}
}

// TestMultipleInitialize tests reference counting behavior
func TestMultipleInitialize(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Skipf("First Initialize failed: %v", err)
	}
	if err := Initialize(); err != nil {
		t.Fatalf("Second Initialize failed: %v", err)
	}

	if err := Terminate(); err != nil {
		t.Errorf("First Terminate failed: %v", err)
	}
	if initialized != 1 {
		t.Errorf("reference count = %d after one Terminate, want 1", initialized)
	}
	if err := Terminate(); err != nil {
		t.Errorf("Second Terminate failed: %v", err)
	}

	// Extra Terminate is a no-op.
	if err := Terminate(); err != nil {
		t.Errorf("Unmatched Terminate failed: %v", err)
	}
}

func TestGetVersion(t *testing.T) {
	initOrSkip(t)

	if GetVersion() == 0 {
		t.Error("GetVersion returned 0")
	}
	if GetVersionText() == "" {
		t.Error("GetVersionText returned empty string")
	}
	t.Logf("PortAudio Version: %d (%s)", GetVersion(), GetVersionText())
}

func TestPaErrorCodeAndText(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"InvalidChannelCount", -9998},
		{"InvalidSampleRate", -9997},
		{"InvalidDevice", -9996},
		{"BadStreamPtr", int(ErrBadStreamPtr)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &PaError{Code: tt.code}
			if err.ErrorCode() != tt.code {
				t.Errorf("ErrorCode() = %d, want %d", err.ErrorCode(), tt.code)
			}
			if err.ErrorText() == "" {
				t.Error("ErrorText returned empty string")
			}
			if err.Error() != err.ErrorText() {
				t.Errorf("Error() = %q, ErrorText() = %q", err.Error(), err.ErrorText())
			}
		})
	}
}

func TestUnanticipatedHostError(t *testing.T) {
	err := &UnanticipatedHostError{
		Code:          -9999,
		Text:          "Unanticipated host error",
		HostErrorCode: -16,
		HostErrorText: "Device or resource busy",
	}
	want := "Unanticipated host error [Host API error -16: Device or resource busy]"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.ErrorCode() != -9999 {
		t.Errorf("ErrorCode() = %d", err.ErrorCode())
	}

	err.HostErrorText = ""
	if got := err.ErrorText(); got != "Unanticipated host error [Host API error -16]" {
		t.Errorf("ErrorText() = %q", got)
	}
}

// TestGetSampleSize tests sample format size calculations
func TestGetSampleSize(t *testing.T) {
	tests := []struct {
		name     string
		format   PaSampleFormat
		expected int
	}{
		{"Float32", SampleFmtFloat32, 4},
		{"Int32", SampleFmtInt32, 4},
		{"Int24", SampleFmtInt24, 3},
		{"Int16", SampleFmtInt16, 2},
		{"Int8", SampleFmtInt8, 1},
		{"UInt8", SampleFmtUInt8, 1},
		{"Unknown", PaSampleFormat(0x4000), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if size := GetSampleSize(tt.format); size != tt.expected {
				t.Errorf("GetSampleSize(%v) = %d, want %d", tt.format, size, tt.expected)
			}
		})
	}
}

func TestFrameBytes(t *testing.T) {
	if got := frameBytes(nil); got != 0 {
		t.Errorf("frameBytes(nil) = %d, want 0", got)
	}
	p := &PaStreamParameters{ChannelCount: 2, SampleFormat: SampleFmtFloat32}
	if got := frameBytes(p); got != 8 {
		t.Errorf("frameBytes(stereo float32) = %d, want 8", got)
	}
}

func TestByteView(t *testing.T) {
	if b := byteView(nil, 16); b != nil {
		t.Errorf("byteView(nil) = %v, want nil", b)
	}

	backing := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	b := byteView(unsafe.Pointer(&backing[0]), 4)
	if len(b) != 4 || b[3] != 4 {
		t.Errorf("byteView = %v", b)
	}

	// A present buffer of zero frames is empty, not absent.
	if b := byteView(unsafe.Pointer(&backing[0]), 0); b == nil || len(b) != 0 {
		t.Errorf("byteView(p, 0) = %#v, want empty non-nil slice", b)
	}
}

func TestCallbackRegistry(t *testing.T) {
	var calls atomic.Int32
	info := &streamCallbackInfo{
		callback: func(_, _ []byte, _ uint, _ *StreamCallbackTimeInfo, _ StreamCallbackFlags) StreamCallbackResult {
			calls.Add(1)
			return Complete
		},
	}

	a := registerCallback(info)
	b := registerCallback(info)
	if a == b {
		t.Fatalf("registerCallback returned duplicate id %d", a)
	}

	got, ok := getCallbackInfo(a)
	if !ok || got != info {
		t.Fatalf("getCallbackInfo(%d) = %v, %v", a, got, ok)
	}

	unregisterCallback(a)
	unregisterCallback(b)
	if _, ok := getCallbackInfo(a); ok {
		t.Error("callback still registered after unregisterCallback")
	}
}

func TestGetDeviceCount(t *testing.T) {
	initOrSkip(t)

	count, err := GetDeviceCount()
	if err != nil {
		t.Fatalf("GetDeviceCount failed: %v", err)
	}
	if count < 0 {
		t.Error("GetDeviceCount returned negative count")
	}
	t.Logf("Found %d audio devices", count)
}

func TestGetDeviceInfo(t *testing.T) {
	initOrSkip(t)

	count, err := GetDeviceCount()
	if err != nil {
		t.Fatalf("GetDeviceCount failed: %v", err)
	}
	if count == 0 {
		t.Skip("No audio devices available")
	}

	for i := 0; i < count; i++ {
		info, err := GetDeviceInfo(i)
		if err != nil {
			t.Errorf("GetDeviceInfo(%d) failed: %v", i, err)
			continue
		}
		if info.Index != i {
			t.Errorf("device %d reports index %d", i, info.Index)
		}
		if info.MaxInputChannels < 0 || info.MaxOutputChannels < 0 {
			t.Errorf("device %d: invalid channel counts", i)
		}
		t.Logf("Device %d: %s [%s] (In: %d, Out: %d, %.0f Hz)", i, info.Name, info.HostApiName,
			info.MaxInputChannels, info.MaxOutputChannels, info.DefaultSampleRate)
	}

	_, err = GetDeviceInfo(-1)
	pe, ok := err.(*PaError)
	if !ok || pe.Code != int(ErrInvalidDevice) {
		t.Errorf("GetDeviceInfo(-1) = %v, want invalid device error", err)
	}
}

func TestDefaultDevices(t *testing.T) {
	initOrSkip(t)

	if idx, ok := DefaultInputDevice(); ok {
		info, err := GetDeviceInfo(idx)
		if err != nil {
			t.Fatalf("GetDeviceInfo(default input) failed: %v", err)
		}
		if info.MaxInputChannels <= 0 {
			t.Error("Default input device has no input channels")
		}
	} else if idx != NoDevice {
		t.Errorf("DefaultInputDevice() = %d, false", idx)
	}

	if idx, ok := DefaultOutputDevice(); ok {
		info, err := GetDeviceInfo(idx)
		if err != nil {
			t.Fatalf("GetDeviceInfo(default output) failed: %v", err)
		}
		if info.MaxOutputChannels <= 0 {
			t.Error("Default output device has no output channels")
		}
	} else if idx != NoDevice {
		t.Errorf("DefaultOutputDevice() = %d, false", idx)
	}
}

func TestNewStreamNeedsParameters(t *testing.T) {
	if _, err := NewStream(nil, nil, 44100); err == nil {
		t.Error("NewStream(nil, nil) should fail")
	}
}

func defaultInput(t *testing.T) *DeviceInfo {
	t.Helper()
	idx, ok := DefaultInputDevice()
	if !ok {
		t.Skip("No default input device available")
	}
	info, err := GetDeviceInfo(idx)
	if err != nil {
		t.Fatalf("GetDeviceInfo(%d) failed: %v", idx, err)
	}
	return info
}

func TestIsFormatSupported(t *testing.T) {
	initOrSkip(t)
	dev := defaultInput(t)

	tests := []struct {
		name       string
		channels   int
		sampleRate float64
		shouldPass bool
	}{
		{"Mono default rate", 1, dev.DefaultSampleRate, true},
		{"Invalid sample rate", 1, 1, false},
		{"Too many channels", 999, dev.DefaultSampleRate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := &PaStreamParameters{
				DeviceIndex:      dev.Index,
				ChannelCount:     tt.channels,
				SampleFormat:     SampleFmtFloat32,
				SuggestedLatency: dev.DefaultLowInputLatency,
			}

			err := IsFormatSupported(params, nil, tt.sampleRate)
			if tt.shouldPass && err != nil {
				t.Errorf("Expected format to be supported, got error: %v", err)
			}
			if !tt.shouldPass && err == nil {
				t.Error("Expected format to be unsupported, but got no error")
			}
		})
	}
}

// TestInputCallbackStream opens, runs and aborts a capture stream with an
// unspecified buffer size.
func TestInputCallbackStream(t *testing.T) {
	initOrSkip(t)
	dev := defaultInput(t)

	stream, err := NewInputStream(PaStreamParameters{
		DeviceIndex:      dev.Index,
		ChannelCount:     1,
		SampleFormat:     SampleFmtFloat32,
		SuggestedLatency: dev.DefaultLowInputLatency,
	}, dev.DefaultSampleRate)
	if err != nil {
		t.Skipf("NewInputStream failed: %v", err)
	}

	// Unopened streams reject operations.
	if err := stream.StartStream(); err == nil {
		t.Error("StartStream should fail on unopened stream")
	}
	if err := stream.CloseCallback(); err != nil {
		t.Errorf("CloseCallback on unopened stream: %v", err)
	}

	var calls, badSize atomic.Int32
	callback := func(input, output []byte, frameCount uint, _ *StreamCallbackTimeInfo, _ StreamCallbackFlags) StreamCallbackResult {
		calls.Add(1)
		if output != nil || (input != nil && len(input) != int(frameCount)*4) {
			badSize.Add(1)
		}
		return Continue
	}

	if err := stream.OpenCallback(FramesPerBufferUnspecified, callback); err != nil {
		t.Skipf("OpenCallback failed: %v", err)
	}
	if err := stream.OpenCallback(256, callback); err == nil {
		t.Error("OpenCallback should fail on already open stream")
	}

	if err := stream.StartStream(); err != nil {
		_ = stream.CloseCallback()
		t.Skipf("StartStream failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if active, err := stream.IsActive(); err != nil || !active {
		t.Errorf("IsActive() = %v, %v", active, err)
	}
	if info, err := stream.Info(); err != nil {
		t.Errorf("Info failed: %v", err)
	} else {
		t.Logf("Stream info: input latency %.4fs, rate %.0f", info.InputLatency, info.SampleRate)
	}

	id := stream.callbackID
	if err := stream.AbortStream(); err != nil {
		t.Errorf("AbortStream failed: %v", err)
	}
	if err := stream.CloseCallback(); err != nil {
		t.Errorf("CloseCallback failed: %v", err)
	}
	if _, ok := getCallbackInfo(id); ok {
		t.Error("callback still registered after close")
	}

	if calls.Load() == 0 {
		t.Error("callback was never invoked")
	}
	if badSize.Load() != 0 {
		t.Errorf("%d callbacks saw wrongly sized buffers", badSize.Load())
	}
}

// TestCallbackCompleteStopsStream checks that returning Complete makes the
// stream inactive.
func TestCallbackCompleteStopsStream(t *testing.T) {
	initOrSkip(t)
	dev := defaultInput(t)

	stream, err := NewInputStream(PaStreamParameters{
		DeviceIndex:      dev.Index,
		ChannelCount:     1,
		SampleFormat:     SampleFmtFloat32,
		SuggestedLatency: dev.DefaultLowInputLatency,
	}, dev.DefaultSampleRate)
	if err != nil {
		t.Skipf("NewInputStream failed: %v", err)
	}

	callback := func(_, _ []byte, _ uint, _ *StreamCallbackTimeInfo, _ StreamCallbackFlags) StreamCallbackResult {
		return Complete
	}
	if err := stream.OpenCallback(256, callback); err != nil {
		t.Skipf("OpenCallback failed: %v", err)
	}
	defer func() { _ = stream.CloseCallback() }()

	if err := stream.StartStream(); err != nil {
		t.Skipf("StartStream failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		active, err := stream.IsActive()
		if err != nil {
			t.Fatalf("IsActive failed: %v", err)
		}
		if !active {
			_ = stream.StopStream()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	_ = stream.AbortStream()
	t.Error("stream still active after callback returned Complete")
}
