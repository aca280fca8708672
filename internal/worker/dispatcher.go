// Package worker runs the framed command loop and dispatches decoded commands.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbright/imgworker/internal/imageops"
	"github.com/rbright/imgworker/internal/protocol"
	"github.com/rbright/imgworker/internal/version"
)

// VersionKey is the response field carrying the runtime version string.
const VersionKey = "sys.version"

// Handler processes one decoded command.
type Handler interface {
	Handle(context.Context, protocol.Request) protocol.Result
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, protocol.Request) protocol.Result

func (f HandlerFunc) Handle(ctx context.Context, req protocol.Request) protocol.Result {
	return f(ctx, req)
}

// ImageConverter is the imaging backend used by ConvertToGray.
type ImageConverter interface {
	ToGray(ctx context.Context, input, output string) error
}

// Dispatcher maps each request variant to its operation.
type Dispatcher struct {
	images  ImageConverter
	version func() string
}

func NewDispatcher(images ImageConverter) *Dispatcher {
	return &Dispatcher{images: images, version: version.Runtime}
}

// Handle runs req. Panics are recovered into an internal failure so one bad
// command never takes the loop down.
func (d *Dispatcher) Handle(ctx context.Context, req protocol.Request) (result protocol.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = protocol.Failed(&protocol.Failure{
				Kind: protocol.KindInternal,
				Err:  fmt.Errorf("panic handling %s: %v", commandName(req), r),
			})
		}
	}()

	switch r := req.(type) {
	case protocol.VersionQuery:
		return protocol.OK(map[string]any{VersionKey: d.version()})
	case protocol.ConvertToGray:
		if err := d.images.ToGray(ctx, r.Input, r.Output); err != nil {
			return protocol.Failed(classify(err))
		}
		return protocol.OK(nil)
	default:
		return protocol.Failed(&protocol.Failure{Kind: protocol.KindUnknownCommand, Err: protocol.ErrUnknownCommand})
	}
}

func classify(err error) *protocol.Failure {
	switch {
	case errors.Is(err, imageops.ErrUnsupportedFormat):
		return protocol.Fail(protocol.KindUnsupportedFormat, err)
	case errors.Is(err, imageops.ErrDecode):
		return protocol.Fail(protocol.KindDecode, err)
	case errors.Is(err, imageops.ErrEncode):
		return protocol.Fail(protocol.KindEncode, err)
	default:
		return protocol.Fail(protocol.KindInternal, err)
	}
}

func commandName(req protocol.Request) string {
	if req == nil {
		return "<nil>"
	}
	return req.Command().String()
}
