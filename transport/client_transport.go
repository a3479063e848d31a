// Package transport moves one request/response pair over a fresh TCP connection.
//
// The connection model is deliberately simple: dial, send one framed request, read
// frames until the single response arrives, and let the server close the connection.
// Nothing is pooled or multiplexed — each call owns its connection for its whole life,
// so no cross-call synchronization exists on this path.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/mayingwei/myrpc/codec"
	"github.com/mayingwei/myrpc/message"
	"github.com/mayingwei/myrpc/protocol"
)

// ErrConnectionClosed means the server closed the connection before sending a
// response frame.
var ErrConnectionClosed = errors.New("transport: connection closed before response")

// RoundTrip dials addr, sends req, and returns the single response the server writes
// before closing. The context bounds the whole exchange: dial, write, and read all
// respect its deadline.
func RoundTrip(ctx context.Context, addr string, req *message.RpcRequest, cdc codec.Codec) (*message.RpcResponse, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
		tc.SetKeepAlive(true)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	body, err := cdc.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("transport: encode request: %w", err)
	}
	if err := protocol.WriteFrame(conn, body); err != nil {
		return nil, fmt.Errorf("transport: write request: %w", err)
	}

	var dec protocol.Decoder
	buf := make([]byte, 4096)
	for {
		payload, err := dec.Next()
		if err != nil {
			return nil, fmt.Errorf("transport: %w", err)
		}
		if payload != nil {
			resp := &message.RpcResponse{}
			if err := cdc.Decode(payload, resp); err != nil {
				return nil, fmt.Errorf("transport: decode response: %w", err)
			}
			return resp, nil
		}

		n, err := conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrConnectionClosed
			}
			return nil, fmt.Errorf("transport: read response: %w", err)
		}
	}
}
