package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// UnknownCommandMessage is the fixed message returned for unrecognised dispatch codes.
const UnknownCommandMessage = "Unknown command."

var ErrUnknownCommand = errors.New(UnknownCommandMessage)

// FailureKind classifies why a command did not succeed.
type FailureKind string

const (
	KindUnknownCommand    FailureKind = "unknown_command"
	KindMalformedRequest  FailureKind = "malformed_request"
	KindInvalidRequest    FailureKind = "invalid_request"
	KindUnsupportedFormat FailureKind = "unsupported_format"
	KindDecode            FailureKind = "decode"
	KindEncode            FailureKind = "encode"
	KindInternal          FailureKind = "internal"
)

// Failure is a categorized command error.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail wraps err as a Failure of the given kind unless it already is one.
func Fail(kind FailureKind, err error) *Failure {
	var existing *Failure
	if errors.As(err, &existing) {
		return existing
	}
	return &Failure{Kind: kind, Err: err}
}

// Result is the outcome of one command: a payload on success, a Failure otherwise.
type Result struct {
	Payload map[string]any
	Failure *Failure
}

// OK builds a success result. A nil payload encodes as {}.
func OK(payload map[string]any) Result {
	if payload == nil {
		payload = map[string]any{}
	}
	return Result{Payload: payload}
}

// Failed builds a failure result.
func Failed(f *Failure) Result {
	return Result{Failure: f}
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Outcome is a short label for logs.
func (r Result) Outcome() string {
	if r.Failure == nil {
		return "ok"
	}
	return string(r.Failure.Kind)
}

// Encode renders the wire shape of r:
// the payload on success, {"error": ...} for unknown commands and
// {"exception": ...} for everything else.
func (r Result) Encode() ([]byte, error) {
	var body map[string]any
	switch {
	case r.Failure == nil:
		body = r.Payload
		if body == nil {
			body = map[string]any{}
		}
	case r.Failure.Kind == KindUnknownCommand:
		body = map[string]any{"error": UnknownCommandMessage}
	default:
		body = map[string]any{"exception": r.Failure.Error()}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}
