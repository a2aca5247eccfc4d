package session

import (
	"errors"
	"fmt"
)

// Kind names a failure of the lifecycle driver.
type Kind int

const (
	KindInit Kind = iota + 1
	KindDeviceCount
	KindDeviceInfo
	KindNoDefaultInput
	KindNoDefaultOutput
	KindChannelCount
	KindNoChannels
	KindFormatUnsupported
	KindStreamOpen
	KindStreamStart
	KindStreamStop
	KindStreamClose
	KindTerminate
	KindConfig
	KindRecord
)

var kindNames = map[Kind]string{
	KindInit:              "initialize audio library",
	KindDeviceCount:       "get device count",
	KindDeviceInfo:        "get device info",
	KindNoDefaultInput:    "no default input device",
	KindNoDefaultOutput:   "no default output device",
	KindChannelCount:      "channel count exceeds device maximum",
	KindNoChannels:        "device has no usable channels",
	KindFormatUnsupported: "format not supported",
	KindStreamOpen:        "open stream",
	KindStreamStart:       "start stream",
	KindStreamStop:        "stop stream",
	KindStreamClose:       "close stream",
	KindTerminate:         "terminate audio library",
	KindConfig:            "invalid configuration",
	KindRecord:            "record input",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// CodedError is implemented by engine errors carrying a native error code.
type CodedError interface {
	error
	ErrorCode() int
	ErrorText() string
}

// Error is a failure of one lifecycle step.
type Error struct {
	Kind Kind
	// Code and Text are the library's error code and message; Code is 0
	// when the failure was detected locally.
	Code int
	Text string
	// Detail describes a locally detected failure.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s: %s (code %d)", e.Kind, e.Text, e.Code)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is, or wraps, an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// fail wraps an engine error, extracting the library code when present.
func fail(kind Kind, err error) *Error {
	e := &Error{Kind: kind, Err: err}
	var coded CodedError
	if errors.As(err, &coded) {
		e.Code = coded.ErrorCode()
		e.Text = coded.ErrorText()
	}
	return e
}

// failf reports a failure detected by the driver itself.
func failf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
