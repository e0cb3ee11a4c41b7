package types

import (
	"errors"
	"fmt"
)

// ErrorClass tells the caller what to do after a failed backend call.
type ErrorClass int

const (
	// Transient failures are safe to retry with the row state unchanged.
	Transient ErrorClass = iota + 1
	// Rejected means the backend refused the request; fix the row and retry.
	Rejected
	// Fatal means the local view can no longer be trusted; reload the table.
	Fatal
)

// Class sentinels, matched with errors.Is against a *RequestError.
var (
	ErrTransient = errors.New("transient backend failure")
	ErrRejected  = errors.New("request rejected by backend")
	ErrFatal     = errors.New("fatal backend failure")
)

func (c ErrorClass) String() string {
	switch c {
	case Transient:
		return "transient"
	case Rejected:
		return "rejected"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

func (c ErrorClass) sentinel() error {
	switch c {
	case Transient:
		return ErrTransient
	case Rejected:
		return ErrRejected
	default:
		return ErrFatal
	}
}

// RequestError describes a failed backend call.
type RequestError struct {
	Method string
	Path   string
	Status int // zero when no response arrived
	Class  ErrorClass
	Body   string // trimmed response body, if any
	Err    error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Class)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class.sentinel()}
	}
	return []error{e.Class.sentinel(), e.Err}
}

// ClassOf returns the class of a backend failure, or zero when err does not
// come from a backend call.
func ClassOf(err error) ErrorClass {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Class
	}
	return 0
}
