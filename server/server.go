// Package server implements the RPC server: handler registration keyed by service key,
// an accept loop handing connections to per-connection goroutines, a middleware chain
// around dispatch, read-idle enforcement, and graceful shutdown.
//
// Request processing pipeline, per connection:
//
//	Accept conn → handleConn
//	  → read with idle deadline → frame Decoder → codec.Decode(RpcRequest)
//	  → Middleware Chain → dispatch (cached method index, reflect call)
//	  → codec.Encode(RpcResponse) → frame write → close conn
//
// One request per connection: the server answers and closes, so there is no
// intra-connection ordering to manage.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mayingwei/myrpc/codec"
	"github.com/mayingwei/myrpc/message"
	"github.com/mayingwei/myrpc/middleware"
	"github.com/mayingwei/myrpc/protocol"
	"github.com/mayingwei/myrpc/registry"
)

// DefaultReadIdle is how long a connection may stay silent before the server closes it.
const DefaultReadIdle = 30 * time.Second

// Server is the RPC server. Register handlers before calling Serve; the handler map is
// read-only afterwards, so dispatch reads it without locking.
type Server struct {
	services      map[string]*service // ServiceKey → handler, immutable after Serve
	listener      net.Listener
	wg            sync.WaitGroup // tracks live connections for graceful shutdown
	shutdown      atomic.Bool
	middlewares   []middleware.Middleware
	handler       middleware.HandlerFunc
	registry      registry.Registrar
	advertiseAddr string
	cdc           codec.Codec
	readIdle      time.Duration
	logger        *zap.Logger
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithReadIdle overrides the read-idle window after which a silent connection is closed.
func WithReadIdle(d time.Duration) Option {
	return func(s *Server) { s.readIdle = d }
}

func WithCodec(c codec.Codec) Option {
	return func(s *Server) { s.cdc = c }
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		services: make(map[string]*service),
		cdc:      &codec.BinaryCodec{},
		readIdle: DefaultReadIdle,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register exposes rcvr as the handler for (interfaceName, serviceVersion). The
// receiver's exported methods become callable remotely. Registering two handlers under
// the same service key is a startup error.
func (svr *Server) Register(interfaceName, serviceVersion string, rcvr any) error {
	key := message.ServiceKey(interfaceName, serviceVersion)
	if _, dup := svr.services[key]; dup {
		return fmt.Errorf("rpc: duplicate handler for service key %s", key)
	}
	svc, err := newService(key, rcvr)
	if err != nil {
		return err
	}
	svr.services[key] = svc
	return nil
}

// Use appends a middleware. Middlewares run in the order they were added, outermost
// first, around dispatch. Must be called before Serve.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Serve listens on address, publishes every registered service key under
// advertiseAddr (when reg is non-nil), and runs the accept loop until Shutdown.
//
// advertiseAddr is the address written into the registry (e.g. "127.0.0.1:18001");
// it differs from the listen address because ":18001" is not routable for clients.
func (svr *Server) Serve(network, address, advertiseAddr string, reg registry.Registrar) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	svr.listener = listener

	// The chain is built once at startup, not per request.
	svr.handler = middleware.Chain(svr.middlewares...)(svr.dispatch)

	svr.advertiseAddr = advertiseAddr
	if reg != nil {
		svr.registry = reg
		for key := range svr.services {
			if err := reg.Register(context.Background(), key, advertiseAddr); err != nil {
				listener.Close()
				return fmt.Errorf("register %s: %w", key, err)
			}
			svr.logger.Info("service registered",
				zap.String("serviceKey", key), zap.String("address", advertiseAddr))
		}
	}

	svr.logger.Info("rpc server listening", zap.String("address", address))
	for {
		conn, err := listener.Accept()
		if err != nil {
			// Shutdown closes the listener; that Accept error is not a fault.
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		svr.wg.Add(1)
		go svr.handleConn(conn)
	}
}

// handleConn drives one connection: accumulate bytes under the read-idle deadline
// until a full frame arrives, dispatch it, write the response, close. Frame-level and
// decode faults close the connection without a response; handler faults are answered.
func (svr *Server) handleConn(conn net.Conn) {
	defer svr.wg.Done()
	defer conn.Close()

	var dec protocol.Decoder
	buf := make([]byte, 4096)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(svr.readIdle)); err != nil {
			return
		}
		n, err := conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				svr.logger.Info("closing idle connection",
					zap.String("remote", conn.RemoteAddr().String()))
			} else if !errors.Is(err, net.ErrClosed) {
				svr.logger.Warn("connection read failed",
					zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			}
			return
		}

		payload, err := dec.Next()
		if err != nil {
			svr.logger.Warn("protocol fault, closing connection",
				zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			return
		}
		if payload == nil {
			continue // partial frame, wait for more bytes
		}

		req := &message.RpcRequest{}
		if err := svr.cdc.Decode(payload, req); err != nil {
			svr.logger.Warn("request decode failed, closing connection",
				zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			return
		}

		resp := svr.handler(context.Background(), req)

		body, err := svr.cdc.Encode(resp)
		if err != nil {
			svr.logger.Error("response encode failed",
				zap.String("requestId", req.RequestID), zap.Error(err))
			return
		}
		conn.SetWriteDeadline(time.Now().Add(svr.readIdle))
		if err := protocol.WriteFrame(conn, body); err != nil {
			svr.logger.Warn("response write failed",
				zap.String("requestId", req.RequestID), zap.Error(err))
		}
		return // one request per connection; defer closes it
	}
}

// dispatch is the innermost handler: service key lookup and method invocation.
// Handler errors never terminate the connection; they are encoded into the response.
func (svr *Server) dispatch(ctx context.Context, req *message.RpcRequest) *message.RpcResponse {
	resp := &message.RpcResponse{RequestID: req.RequestID}

	key := message.ServiceKey(req.InterfaceName, req.ServiceVersion)
	svc, ok := svr.services[key]
	if !ok {
		resp.Exception = &message.RemoteError{Message: fmt.Sprintf("no such service: %s", key)}
		return resp
	}

	result, err := svc.call(ctx, req.MethodName, req.Parameters)
	if err != nil {
		resp.Exception = &message.RemoteError{Message: err.Error()}
		return resp
	}
	resp.Result = result
	return resp
}

// Shutdown stops the server gracefully:
//  1. Close the registry session — ephemeral endpoint nodes vanish and clients stop
//     routing here.
//  2. Set the shutdown flag, then close the listener (order matters: the flag must be
//     visible before Accept fails).
//  3. Wait for in-flight connections, bounded by timeout.
func (svr *Server) Shutdown(timeout time.Duration) error {
	if svr.registry != nil {
		if err := svr.registry.Close(); err != nil {
			svr.logger.Warn("registry session close failed", zap.Error(err))
		}
	}

	svr.shutdown.Store(true)
	if svr.listener != nil {
		svr.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for in-flight connections to finish")
	}
}
