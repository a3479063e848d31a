package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mayingwei/myrpc/loadbalance"
)

// ServiceDiscovery resolves service keys to live endpoints. Each lookup opens a fresh
// session, reads one address, and closes — discovery holds no state between calls, so
// the balancer alone decides the spread across providers.
type ServiceDiscovery struct {
	dial     func() (Conn, error)
	balancer loadbalance.Balancer
	logger   *zap.Logger
}

// NewServiceDiscovery builds a discovery client. dial opens a coordination session;
// balancer picks among address children and defaults to the random policy.
func NewServiceDiscovery(dial func() (Conn, error), balancer loadbalance.Balancer, logger *zap.Logger) *ServiceDiscovery {
	if balancer == nil {
		balancer = &loadbalance.RandomBalancer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceDiscovery{dial: dial, balancer: balancer, logger: logger}
}

// Discover returns the "host:port" of one live provider of serviceName.
func (d *ServiceDiscovery) Discover(ctx context.Context, serviceName string) (string, error) {
	conn, err := d.dial()
	if err != nil {
		return "", fmt.Errorf("open coordination session: %w", err)
	}
	defer conn.Close()

	servicePath := RegistryPath + "/" + serviceName
	exists, err := conn.Exists(ctx, servicePath)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrNoSuchService, serviceName)
	}

	children, err := conn.GetChildren(ctx, servicePath)
	if err != nil {
		return "", err
	}
	if len(children) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoProviders, serviceName)
	}

	var child string
	if len(children) == 1 {
		child = children[0]
	} else {
		child, err = d.balancer.Pick(children)
		if err != nil {
			return "", err
		}
	}

	data, err := conn.ReadData(ctx, servicePath+"/"+child)
	if err != nil {
		return "", err
	}
	address := string(data)
	d.logger.Debug("service discovered",
		zap.String("serviceKey", serviceName), zap.String("address", address))
	return address, nil
}
