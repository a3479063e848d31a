package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ServiceRegistry publishes endpoints through one long-lived session. The session's
// lifetime is the registration's lifetime: when the session ends, every address this
// registry published disappears from the store.
type ServiceRegistry struct {
	conn   Conn
	logger *zap.Logger
}

func NewServiceRegistry(conn Conn, logger *zap.Logger) *ServiceRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceRegistry{conn: conn, logger: logger}
}

// Register publishes serviceAddress under serviceName:
//  1. ensure the persistent registry root,
//  2. ensure the persistent service node,
//  3. create an ephemeral-sequential address child carrying the endpoint.
func (r *ServiceRegistry) Register(ctx context.Context, serviceName, serviceAddress string) error {
	exists, err := r.conn.Exists(ctx, RegistryPath)
	if err != nil {
		return fmt.Errorf("check registry root: %w", err)
	}
	if !exists {
		if err := r.conn.CreatePersistent(ctx, RegistryPath); err != nil {
			return fmt.Errorf("create registry root: %w", err)
		}
	}

	servicePath := RegistryPath + "/" + serviceName
	exists, err = r.conn.Exists(ctx, servicePath)
	if err != nil {
		return fmt.Errorf("check service node: %w", err)
	}
	if !exists {
		if err := r.conn.CreatePersistent(ctx, servicePath); err != nil {
			return fmt.Errorf("create service node: %w", err)
		}
	}

	addressPath := servicePath + "/address-"
	node, err := r.conn.CreateEphemeralSequential(ctx, addressPath, []byte(serviceAddress))
	if err != nil {
		return fmt.Errorf("create address node: %w", err)
	}
	r.logger.Info("endpoint registered",
		zap.String("node", node), zap.String("address", serviceAddress))
	return nil
}

// Close ends the session, withdrawing every published endpoint.
func (r *ServiceRegistry) Close() error {
	return r.conn.Close()
}
