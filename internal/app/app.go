package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/imgworker/internal/cli"
	"github.com/rbright/imgworker/internal/config"
	"github.com/rbright/imgworker/internal/doctor"
	"github.com/rbright/imgworker/internal/imageops"
	"github.com/rbright/imgworker/internal/ipc"
	"github.com/rbright/imgworker/internal/logging"
	"github.com/rbright/imgworker/internal/protocol"
	"github.com/rbright/imgworker/internal/version"
	"github.com/rbright/imgworker/internal/worker"
)

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := Runner{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("imgworker"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("imgworker"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Log)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: logging disabled: %v\n", err)
		logRuntime = logging.Runtime{Logger: logging.Discard()}
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
		"version", version.String(),
	)

	switch parsed.Command {
	case cli.CommandRun:
		return r.commandRun(ctx, parsed, cfgLoaded.Config, logger)
	case cli.CommandServe:
		return r.commandServe(ctx, parsed, cfgLoaded.Config, logger)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded, doctor.Options{
			LogPath:    logRuntime.Path,
			SocketPath: parsed.SocketPath,
		})
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func newLoop(framer protocol.Framer, cfg config.Config, logger *slog.Logger) worker.Loop {
	converter := imageops.NewConverter(imageops.OptionsFromConfig(cfg.Image))
	return worker.Loop{
		Framer:        framer,
		Handler:       worker.NewDispatcher(converter),
		Logger:        logger,
		MalformedLine: cfg.Protocol.MalformedLine,
		MaxLineBytes:  cfg.Protocol.MaxLineBytes,
	}
}

func (r Runner) commandRun(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	stdin := r.Stdin
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	loop := newLoop(protocol.NewFramer(protocol.StreamID(parsed.StreamID, parsed.StreamIDSet)), cfg, logger)
	started := time.Now()
	stats, err := loop.Run(ctx, stdin, r.Stdout)
	logStreamResult(logger, stats, started, err)

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	default:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
}

func (r Runner) commandServe(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	socketPath := parsed.SocketPath
	if socketPath == "" {
		resolved, err := ipc.RuntimeSocketPath()
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		socketPath = resolved
	}

	listener, err := ipc.Acquire(ctx, socketPath, 200*time.Millisecond)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("acquire socket failed", "socket", socketPath, "error", err.Error())
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	framer := protocol.NewFramer(protocol.StreamID(parsed.StreamID, parsed.StreamIDSet))
	handler := ipc.ConnHandlerFunc(func(ctx context.Context, conn net.Conn) error {
		connLogger := logger.With("conn_id", uuid.NewString())
		loop := newLoop(framer, cfg, connLogger)
		started := time.Now()
		stats, err := loop.Run(ctx, conn, conn)
		logStreamResult(connLogger, stats, started, err)
		return err
	})

	fmt.Fprintf(r.Stdout, "listening on %s\n", socketPath)
	logger.Info("serving", "socket", socketPath, "stream", framer.ID)

	if err := ipc.Serve(ctx, listener, handler, logger); err != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", err)
		return 1
	}
	return 0
}

func logStreamResult(logger *slog.Logger, stats worker.Stats, started time.Time, err error) {
	if logger == nil {
		return
	}
	fields := []any{
		"handled", stats.Handled,
		"failed", stats.Failed,
		"duration_ms", time.Since(started).Milliseconds(),
	}

	switch {
	case err == nil:
		logger.Info("stream closed", fields...)
	case errors.Is(err, context.Canceled):
		logger.Info("stream interrupted", fields...)
	default:
		logger.Error("stream failed", append(fields, "error", err.Error())...)
	}
}
