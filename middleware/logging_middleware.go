package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mayingwei/myrpc/message"
)

// LoggingMiddleware logs one line per dispatched request with its duration, and the
// exception when the call failed.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RpcRequest) *message.RpcResponse {
			start := time.Now()
			resp := next(ctx, req)
			fields := []zap.Field{
				zap.String("requestId", req.RequestID),
				zap.String("interface", req.InterfaceName),
				zap.String("method", req.MethodName),
				zap.Duration("duration", time.Since(start)),
			}
			if resp.Exception != nil {
				logger.Warn("rpc call failed", append(fields, zap.String("exception", resp.Exception.Message))...)
			} else {
				logger.Debug("rpc call", fields...)
			}
			return resp
		}
	}
}
