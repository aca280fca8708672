package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

// MissingStreamID is embedded in the markers when no identifier was supplied.
const MissingStreamID = "None"

// StreamID returns id when it was supplied, MissingStreamID otherwise.
// A supplied empty id stays empty.
func StreamID(id string, supplied bool) string {
	if !supplied {
		return MissingStreamID
	}
	return id
}

// Framer wraps response payloads in the start/end markers for one stream id.
type Framer struct {
	ID    string
	start []byte
	end   []byte
}

// NewFramer builds the marker pair for id, used verbatim.
func NewFramer(id string) Framer {
	return Framer{
		ID:    id,
		start: []byte("`S`T`R`E`A`M`" + id + "`S`T`A`R`T`"),
		end:   []byte("`S`T`R`E`A`M`" + id + "`E`N`D`"),
	}
}

func (f Framer) Start() string { return string(f.start) }
func (f Framer) End() string   { return string(f.end) }

// Line returns start + payload + end + "\n".
func (f Framer) Line(payload []byte) []byte {
	line := make([]byte, 0, len(f.start)+len(payload)+len(f.end)+1)
	line = append(line, f.start...)
	line = append(line, payload...)
	line = append(line, f.end...)
	return append(line, '\n')
}

// Unframe extracts the payload from one framed line.
func (f Framer) Unframe(line []byte) ([]byte, error) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, f.start) {
		return nil, errors.New("missing stream start marker")
	}
	rest := line[len(f.start):]
	if !bytes.HasSuffix(rest, f.end) {
		return nil, errors.New("missing stream end marker")
	}
	payload := rest[:len(rest)-len(f.end)]
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload in stream %s", f.ID)
	}
	return payload, nil
}
