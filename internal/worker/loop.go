package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/imgworker/internal/config"
	"github.com/rbright/imgworker/internal/logging"
	"github.com/rbright/imgworker/internal/protocol"
)

// ErrMalformedLine stops the loop when the exit policy is configured.
var ErrMalformedLine = errors.New("malformed command line")

const initialLineBuffer = 64 * 1024

// Loop reads one command per line and writes one framed response per line.
type Loop struct {
	Framer        protocol.Framer
	Handler       Handler
	Logger        *slog.Logger
	MalformedLine config.MalformedLinePolicy
	MaxLineBytes  int
}

// Stats counts what a Run processed.
type Stats struct {
	Handled int
	Failed  int
}

type lineResult struct {
	line []byte
	err  error
}

// Run serves commands from r until end of input, a fatal stream error, or ctx
// cancellation. End of input returns a nil error.
func (l Loop) Run(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	var stats Stats

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan lineResult)
	go scanLines(readCtx, r, l.maxLineBytes(), lines)

	out := bufio.NewWriter(w)
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case next, ok := <-lines:
			if !ok {
				return stats, nil
			}
			if next.err != nil {
				return stats, fmt.Errorf("read command: %w", next.err)
			}
			if err := l.serveLine(ctx, next.line, out, &stats); err != nil {
				return stats, err
			}
		}
	}
}

func (l Loop) serveLine(ctx context.Context, line []byte, out *bufio.Writer, stats *Stats) error {
	logger := l.logger().With("request_id", uuid.NewString(), "stream", l.Framer.ID)
	started := time.Now()

	var result protocol.Result
	command := "invalid"
	req, err := protocol.Decode(line)
	if err != nil {
		failure := protocol.Fail(protocol.KindMalformedRequest, err)
		if failure.Kind == protocol.KindMalformedRequest && l.MalformedLine == config.MalformedLineExit {
			logger.Error("malformed command line", "error", failure.Error(), "bytes", len(line))
			return fmt.Errorf("%w: %v", ErrMalformedLine, failure)
		}
		result = protocol.Failed(failure)
	} else {
		command = req.Command().String()
		result = l.Handler.Handle(ctx, req)
	}

	payload, err := result.Encode()
	if err != nil {
		result = protocol.Failed(protocol.Fail(protocol.KindInternal, err))
		payload, _ = result.Encode()
	}

	if _, err := out.Write(l.Framer.Line(payload)); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	stats.Handled++
	fields := []any{
		"command", command,
		"outcome", result.Outcome(),
		"duration_ms", time.Since(started).Milliseconds(),
	}
	if result.Failure != nil {
		stats.Failed++
		logger.Warn("command failed", append(fields, "error", result.Failure.Error())...)
		return nil
	}
	logger.Info("command handled", fields...)
	return nil
}

func (l Loop) logger() *slog.Logger {
	if l.Logger == nil {
		return logging.Discard()
	}
	return l.Logger
}

func (l Loop) maxLineBytes() int {
	if l.MaxLineBytes <= 0 {
		return bufio.MaxScanTokenSize
	}
	return l.MaxLineBytes
}

func scanLines(ctx context.Context, r io.Reader, maxBytes int, lines chan<- lineResult) {
	defer close(lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(initialLineBuffer, maxBytes)), maxBytes)

	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case lines <- lineResult{line: line}:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case lines <- lineResult{err: err}:
		case <-ctx.Done():
		}
	}
}
