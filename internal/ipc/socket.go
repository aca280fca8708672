// Package ipc serves the worker command loop over a unix socket.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

var ErrAlreadyRunning = errors.New("imgworker already serving on socket")

// RuntimeSocketPath is the default socket location under XDG_RUNTIME_DIR.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, "imgworker.sock"), nil
}

// Acquire listens on path. A socket file left by a dead worker is replaced once;
// a live worker yields ErrAlreadyRunning. Non-socket files are never removed.
func Acquire(ctx context.Context, path string, probeTimeout time.Duration) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure socket dir: %w", err)
	}

	listener, err := listen(path)
	if !errors.Is(err, syscall.EADDRINUSE) {
		return listener, err
	}

	if err := reclaimStale(ctx, path, probeTimeout); err != nil {
		return nil, err
	}
	return listen(path)
}

func listen(path string) (net.Listener, error) {
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", path, err)
	}
	_ = os.Chmod(path, 0o600)
	return listener, nil
}

// reclaimStale removes path when it is a socket nobody answers on.
func reclaimStale(ctx context.Context, path string, probeTimeout time.Duration) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("inspect existing socket %s: %w", path, err)
	}
	if info.Mode().Type() != os.ModeSocket {
		return fmt.Errorf("%s exists and is not a socket", path)
	}

	alive, err := Probe(ctx, path, probeTimeout)
	switch {
	case alive:
		return ErrAlreadyRunning
	case err != nil:
		return fmt.Errorf("probe existing socket %s: %w", path, err)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}
