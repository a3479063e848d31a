// Package middleware provides the server-side handler chain.
//
// A Middleware wraps a HandlerFunc in the onion model:
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
//	Execution order: A.before → B.before → C.before → handler → C.after → B.after → A.after
package middleware

import (
	"context"

	"github.com/mayingwei/myrpc/message"
)

type HandlerFunc func(ctx context.Context, req *message.RpcRequest) *message.RpcResponse

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one, applied in the order given.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// fail builds an error response that still echoes the request id, so the middleware
// layer never breaks the id-echo invariant.
func fail(req *message.RpcRequest, msg string) *message.RpcResponse {
	return &message.RpcResponse{
		RequestID: req.RequestID,
		Exception: &message.RemoteError{Message: msg},
	}
}
