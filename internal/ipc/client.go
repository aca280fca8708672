package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/rbright/imgworker/internal/protocol"
)

// Send writes one command line and returns the unframed JSON response.
func Send(ctx context.Context, path string, framer protocol.Framer, command any, timeout time.Duration) (json.RawMessage, error) {
	line, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	reply, err := roundTrip(ctx, path, line, timeout)
	if err != nil {
		return nil, err
	}

	payload, err := framer.Unframe(reply)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("decode response: invalid JSON payload %q", payload)
	}
	return json.RawMessage(payload), nil
}

// Probe checks whether a responsive worker is currently listening on path.
// Any reply line counts; the peer may use a different stream id.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := roundTrip(ctx, path, []byte(`{"cmd":0}`), timeout)
	if err == nil {
		return true, nil
	}
	if isSocketMissing(err) || isConnectionRefused(err) {
		return false, nil
	}
	return false, fmt.Errorf("probe socket: %w", err)
}

func roundTrip(ctx context.Context, path string, line []byte, timeout time.Duration) ([]byte, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	reply, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return reply, nil
}

// isSocketMissing reports absent-socket failures.
func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist)
}

// isConnectionRefused reports no-listener failures.
func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
