package bpm

import (
	"errors"
	"fmt"
)

// ErrProcessNotFound means the remote middleware answered but knows nothing
// about the requested process. Callers that poll treat this as a normal
// outcome, not a fault.
var ErrProcessNotFound = errors.New("bpm: process not found")

// TransportError wraps a failure to reach the middleware at all: connection
// refused, timeout, or a body that could not be read. The underlying transport
// error never crosses the client boundary raw.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bpm: %s: transport failure: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// RemoteError means the middleware was reachable but returned a non-success
// result or a body that does not match the expected schema. Protocol marks
// the latter class: a non-2xx HTTP status or an undecodable body is the
// middleware malfunctioning, not it rejecting the request.
type RemoteError struct {
	Op       string
	Code     string
	Message  string
	Protocol bool
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bpm: %s: remote failure (code=%s): %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("bpm: %s: remote failure: %s", e.Op, e.Message)
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRemote reports whether err is an application-level remote failure.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsProtocolFailure reports whether err is a remote failure at the protocol
// level (bad HTTP status, unparseable or unrecognized body) rather than a
// business rejection.
func IsProtocolFailure(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Protocol
}
