package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/mayingwei/myrpc/message"
)

// RateLimitMiddleware admits requests through a token bucket: r tokens per second,
// bursts up to burst. Rejected requests get an error response, not a dropped connection.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RpcRequest) *message.RpcResponse {
			if !limiter.Allow() {
				return fail(req, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
