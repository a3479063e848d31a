package middleware

import (
	"context"
	"time"

	"github.com/mayingwei/myrpc/message"
)

// TimeoutMiddleware bounds handler execution. The handler goroutine keeps running
// after a timeout (it cannot be killed), but the connection gets its error response
// instead of blocking the worker indefinitely.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RpcRequest) *message.RpcResponse {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.RpcResponse, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return fail(req, "request timed out")
			}
		}
	}
}
