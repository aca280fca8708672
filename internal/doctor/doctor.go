// Package doctor runs readiness diagnostics for config, logging, codecs, and the worker socket.
package doctor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rbright/imgworker/internal/config"
	"github.com/rbright/imgworker/internal/imageops"
	"github.com/rbright/imgworker/internal/ipc"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// Options carries runtime facts the doctor cannot derive from config alone.
type Options struct {
	LogPath    string
	SocketPath string
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, opts Options) Report {
	checks := []Check{}

	source := "loaded"
	if !cfg.Exists {
		source = "defaults (file missing)"
	}
	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("%s %q", source, cfg.Path),
	})
	for _, w := range cfg.Warnings {
		checks = append(checks, Check{Name: "config.warning", Pass: true, Message: w.Message})
	}

	checks = append(checks, checkLogSink(opts.LogPath))

	converter := imageops.NewConverter(imageops.OptionsFromConfig(cfg.Config.Image))
	for _, ext := range []string{".png", ".jpg"} {
		checks = append(checks, checkCodec(ctx, converter, ext))
	}

	if opts.SocketPath != "" {
		checks = append(checks, checkSocket(ctx, opts.SocketPath))
	}

	return Report{Checks: checks}
}

// checkLogSink verifies the log file exists and is a regular file.
func checkLogSink(path string) Check {
	if strings.TrimSpace(path) == "" {
		return Check{Name: "log", Pass: false, Message: "log path is empty"}
	}
	stat, err := os.Stat(path)
	if err != nil {
		return Check{Name: "log", Pass: false, Message: err.Error()}
	}
	if !stat.Mode().IsRegular() {
		return Check{Name: "log", Pass: false, Message: fmt.Sprintf("%s is not a regular file", path)}
	}
	return Check{Name: "log", Pass: true, Message: fmt.Sprintf("writing to %s", path)}
}

// checkCodec runs a color-to-gray round trip through a temp dir for one output format.
func checkCodec(ctx context.Context, converter *imageops.Converter, ext string) Check {
	name := "codec" + ext

	dir, err := os.MkdirTemp("", "imgworker-doctor-*")
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("create temp dir: %v", err)}
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "probe.png")
	output := filepath.Join(dir, "probe-gray"+ext)
	if err := imaging.Save(imaging.New(8, 8, color.NRGBA{R: 220, G: 40, B: 90, A: 255}), input); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("write probe image: %v", err)}
	}

	started := time.Now()
	if err := converter.ToGray(ctx, input, output); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}

	result, err := imaging.Open(output)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("reopen output: %v", err)}
	}
	if _, ok := result.(*image.Gray); !ok {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("expected single-channel output, got %T", result)}
	}

	return Check{Name: name, Pass: true, Message: fmt.Sprintf("gray round trip in %s", time.Since(started).Round(time.Microsecond))}
}

// checkSocket probes a worker listening on path.
func checkSocket(ctx context.Context, path string) Check {
	alive, err := ipc.Probe(ctx, path, 500*time.Millisecond)
	if err != nil {
		return Check{Name: "socket", Pass: false, Message: err.Error()}
	}
	if !alive {
		return Check{Name: "socket", Pass: false, Message: fmt.Sprintf("no worker listening on %s", path)}
	}
	return Check{Name: "socket", Pass: true, Message: fmt.Sprintf("worker answering on %s", path)}
}
