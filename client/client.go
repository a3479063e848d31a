// Package client provides the caller-side proxy: it turns method invocations into
// request records, resolves a live endpoint, and maps the response back into a result
// or a re-raised remote error.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mayingwei/myrpc/codec"
	"github.com/mayingwei/myrpc/message"
	"github.com/mayingwei/myrpc/registry"
	"github.com/mayingwei/myrpc/transport"
)

// Proxy stands in for one remote service interface at one version. Every Call is
// independent: fresh request id, fresh endpoint resolution, fresh connection.
type Proxy struct {
	interfaceName  string
	serviceVersion string
	discovery      registry.Discoverer // optional; static address used when nil
	serviceAddress string              // administratively set fallback
	cdc            codec.Codec
	callTimeout    time.Duration
	logger         *zap.Logger
}

type Option func(*Proxy)

// WithDiscovery resolves endpoints through the registry instead of a static address.
func WithDiscovery(d registry.Discoverer) Option {
	return func(p *Proxy) { p.discovery = d }
}

// WithServiceAddress sets a fixed "host:port" used when no discovery is configured.
func WithServiceAddress(addr string) Option {
	return func(p *Proxy) { p.serviceAddress = addr }
}

// WithCallTimeout installs a default per-call deadline, applied when the caller's
// context has none. Zero means calls without a deadline may block indefinitely.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Proxy) { p.callTimeout = d }
}

func WithCodec(c codec.Codec) Option {
	return func(p *Proxy) { p.cdc = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Proxy) { p.logger = logger }
}

func NewProxy(interfaceName, serviceVersion string, opts ...Option) *Proxy {
	p := &Proxy{
		interfaceName:  interfaceName,
		serviceVersion: serviceVersion,
		cdc:            &codec.BinaryCodec{},
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Call invokes methodName(args...) on the remote service and returns its result.
// A remote handler error comes back as a *message.RemoteError; discovery and
// transport failures come back as local errors and no result.
func (p *Proxy) Call(ctx context.Context, methodName string, args ...any) (any, error) {
	if p.callTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.callTimeout)
			defer cancel()
		}
	}

	paramTypes := make([]string, len(args))
	for i, a := range args {
		paramTypes[i] = codec.TypeNameOf(a)
	}
	req := &message.RpcRequest{
		RequestID:      uuid.NewString(),
		InterfaceName:  p.interfaceName,
		ServiceVersion: p.serviceVersion,
		MethodName:     methodName,
		ParameterTypes: paramTypes,
		Parameters:     args,
	}

	serviceKey := message.ServiceKey(p.interfaceName, p.serviceVersion)
	address := p.serviceAddress
	if p.discovery != nil {
		var err error
		address, err = p.discovery.Discover(ctx, serviceKey)
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", serviceKey, err)
		}
		p.logger.Debug("service discovered",
			zap.String("serviceKey", serviceKey), zap.String("address", address))
	}
	if address == "" {
		return nil, fmt.Errorf("no address for service %s: neither discovery nor a static address is configured", serviceKey)
	}

	start := time.Now()
	resp, err := transport.RoundTrip(ctx, address, req, p.cdc)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("rpc call completed",
		zap.String("requestId", req.RequestID),
		zap.String("method", methodName),
		zap.Duration("duration", time.Since(start)))

	if resp.RequestID != req.RequestID {
		return nil, fmt.Errorf("response id %q does not match request id %q", resp.RequestID, req.RequestID)
	}
	if resp.Exception != nil {
		return nil, resp.Exception
	}
	return resp.Result, nil
}
