// Package protocol defines the worker's line-delimited JSON command protocol.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Command is the integer dispatch code carried in the "cmd" field.
type Command int

const (
	CommandVersion Command = 0
	CommandToGray  Command = 1
)

func (c Command) String() string {
	switch c {
	case CommandVersion:
		return "version"
	case CommandToGray:
		return "to_gray"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Request is one decoded command. The set of implementations is closed.
type Request interface {
	Command() Command
	isRequest()
}

// VersionQuery asks for the runtime version string.
type VersionQuery struct{}

// ConvertToGray converts the image at Input to grayscale and writes it to Output.
type ConvertToGray struct {
	Input  string
	Output string
}

func (VersionQuery) Command() Command  { return CommandVersion }
func (ConvertToGray) Command() Command { return CommandToGray }

func (VersionQuery) isRequest()  {}
func (ConvertToGray) isRequest() {}

type wireRequest struct {
	Cmd    json.RawMessage `json:"cmd"`
	Input  json.RawMessage `json:"input"`
	Output json.RawMessage `json:"output"`
}

// Decode parses one input line into a typed request. Errors are always *Failure.
func Decode(line []byte) (Request, error) {
	trimmed := bytes.TrimSpace(line)

	var wire wireRequest
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, decodeFailure(trimmed, err)
	}
	if len(wire.Cmd) == 0 {
		return nil, &Failure{Kind: KindInvalidRequest, Err: errors.New(`missing "cmd" field`)}
	}

	cmd, ok := decodeCommand(wire.Cmd)
	if !ok {
		return nil, &Failure{Kind: KindUnknownCommand, Err: ErrUnknownCommand}
	}

	switch cmd {
	case CommandVersion:
		return VersionQuery{}, nil
	case CommandToGray:
		input, err := requiredPath("input", wire.Input)
		if err != nil {
			return nil, err
		}
		output, err := requiredPath("output", wire.Output)
		if err != nil {
			return nil, err
		}
		return ConvertToGray{Input: input, Output: output}, nil
	default:
		return nil, &Failure{Kind: KindUnknownCommand, Err: ErrUnknownCommand}
	}
}

// decodeFailure keeps KindMalformedRequest for lines that are not JSON at all.
// Valid JSON of the wrong shape is an invalid request.
func decodeFailure(line []byte, err error) *Failure {
	var syntaxErr *json.SyntaxError
	if len(line) == 0 || errors.As(err, &syntaxErr) {
		return &Failure{Kind: KindMalformedRequest, Err: fmt.Errorf("decode request: %w", err)}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field == "" {
		return &Failure{Kind: KindInvalidRequest, Err: fmt.Errorf("request must be a JSON object, got %s", typeErr.Value)}
	}
	return &Failure{Kind: KindInvalidRequest, Err: fmt.Errorf("decode request: %w", err)}
}

// decodeCommand accepts JSON numbers with an integral value; 1.0 counts as 1.
func decodeCommand(raw json.RawMessage) (Command, bool) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var v any
	if err := decoder.Decode(&v); err != nil {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}

	if i, err := n.Int64(); err == nil {
		return Command(i), i >= math.MinInt32 && i <= math.MaxInt32
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return Command(int(f)), true
}

func requiredPath(field string, raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", &Failure{Kind: KindInvalidRequest, Err: fmt.Errorf("missing %q path", field)}
	}
	var path string
	if err := json.Unmarshal(raw, &path); err != nil {
		return "", &Failure{Kind: KindInvalidRequest, Err: fmt.Errorf("%q must be a string path", field)}
	}
	return path, nil
}
