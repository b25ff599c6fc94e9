package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/cbeuw/linewire/internal/proto"
)

var ErrTimeout = errors.New("call timed out")

type timeoutResult struct {
	resp proto.Line
	err  error
}

// Timeout fails calls that take longer than d with ErrTimeout. The call itself is left running and whatever it
// returns later is dropped.
func Timeout(d time.Duration) Middleware {
	return func(next proto.Service) proto.Service {
		return proto.ServiceFunc(func(ctx context.Context, req proto.Line) (proto.Line, error) {
			// buffered so that a late call can still finish
			done := make(chan timeoutResult, 1)
			go func() {
				resp, err := next.Call(ctx, req)
				done <- timeoutResult{resp, err}
			}()

			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case r := <-done:
				return r.resp, r.err
			case <-timer.C:
				return proto.Line{}, ErrTimeout
			case <-ctx.Done():
				return proto.Line{}, ctx.Err()
			}
		})
	}
}
