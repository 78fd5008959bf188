// Package rerr defines the error taxonomy shared by the RSP client
// components: transport, codec, session, memory I/O, command execution and
// target control all classify failures into one of these kinds so that
// callers (in particular the interactive loop) can dispatch on Kind rather
// than parse error strings.
package rerr

import "fmt"

// Kind classifies an error into the taxonomy used throughout this module.
type Kind int

const (
	KindUnknown Kind = iota
	KindRecvTimeout
	KindSendTimeout
	KindPartialSend
	KindSocketError
	KindConnectionClosed
	KindBadFormat
	KindBadChecksum
	KindRunLengthNotImplemented
	KindBadResponse
	KindBadInput
	KindGdbReported
	KindUnsupportedServer
	KindInvalidHeader
	KindSizeOutOfRange
	KindIoError
)

func (k Kind) String() string {
	switch k {
	case KindRecvTimeout:
		return "RecvTimeout"
	case KindSendTimeout:
		return "SendTimeout"
	case KindPartialSend:
		return "PartialSend"
	case KindSocketError:
		return "SocketError"
	case KindConnectionClosed:
		return "ConnectionClosed"
	case KindBadFormat:
		return "BadFormat"
	case KindBadChecksum:
		return "BadChecksum"
	case KindRunLengthNotImplemented:
		return "RunLengthNotImplemented"
	case KindBadResponse:
		return "BadResponse"
	case KindBadInput:
		return "BadInput"
	case KindGdbReported:
		return "GdbReported"
	case KindUnsupportedServer:
		return "UnsupportedServer"
	case KindInvalidHeader:
		return "InvalidHeader"
	case KindSizeOutOfRange:
		return "SizeOutOfRange"
	case KindIoError:
		return "IoError"
	default:
		return "Unknown"
	}
}

// RSPError wraps an underlying cause with a Kind and, optionally, the raw
// RSP bytes involved (useful for -debug logging).
type RSPError struct {
	kind  Kind
	msg   string
	bytes []byte
	cause error
}

func New(kind Kind, msg string) *RSPError {
	return &RSPError{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...any) *RSPError {
	return &RSPError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, msg string) *RSPError {
	return &RSPError{kind: kind, msg: msg, cause: cause}
}

// WithBytes attaches the raw RSP bytes involved in the failure, returning
// the same error for chaining at the call site.
func (e *RSPError) WithBytes(b []byte) *RSPError {
	e.bytes = append([]byte(nil), b...)
	return e
}

func (e *RSPError) Bytes() []byte { return e.bytes }

func (e *RSPError) Kind() Kind { return e.kind }

func (e *RSPError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *RSPError) Unwrap() error { return e.cause }

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *RSPError, otherwise returns KindUnknown.
func KindOf(err error) Kind {
	var rerr *RSPError
	if asRSPError(err, &rerr) {
		return rerr.kind
	}
	return KindUnknown
}

func asRSPError(err error, target **RSPError) bool {
	for err != nil {
		if e, ok := err.(*RSPError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
