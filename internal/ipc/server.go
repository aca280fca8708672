package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// ConnHandler serves one accepted connection until the peer hangs up.
type ConnHandler interface {
	ServeConn(context.Context, net.Conn) error
}

// ConnHandlerFunc adapts a function to the ConnHandler interface.
type ConnHandlerFunc func(context.Context, net.Conn) error

func (f ConnHandlerFunc) ServeConn(ctx context.Context, conn net.Conn) error {
	return f(ctx, conn)
}

// Serve accepts unix-socket clients until context cancellation or listener close.
// Open connections are closed on cancellation and waited for before returning.
func Serve(ctx context.Context, listener net.Listener, handler ConnHandler, logger *slog.Logger) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			stop := context.AfterFunc(ctx, func() { _ = c.Close() })
			defer stop()

			if err := handler.ServeConn(ctx, c); err != nil && ctx.Err() == nil && logger != nil {
				logger.Warn("connection ended with error", "error", err.Error())
			}
		}(conn)
	}
}
