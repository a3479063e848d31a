// Package registry publishes live service endpoints and resolves them for clients.
//
// Endpoints live in a hierarchical coordination store:
//
//	/registry/
//	    <serviceKey>/              (persistent)
//	        address-<seq>          (ephemeral, payload = "host:port")
//
// The persistent nodes survive forever; the ephemeral children live exactly as long as
// the session that created them, so a crashed server disappears from discovery without
// any cleanup code.
package registry

import (
	"context"
	"errors"
)

// RegistryPath is the fixed root under which every service key is published.
const RegistryPath = "/registry"

var (
	// ErrNoSuchService means the service node does not exist in the store.
	ErrNoSuchService = errors.New("registry: no such service")
	// ErrNoProviders means the service node exists but has no live endpoint children.
	ErrNoProviders = errors.New("registry: no providers")
	// ErrNoNode means a read targeted a node that does not exist.
	ErrNoNode = errors.New("registry: no such node")
	// ErrSessionClosed means the coordination session is gone.
	ErrSessionClosed = errors.New("registry: session closed")
)

// Conn is one session to the coordination service. Ephemeral nodes created through a
// Conn disappear when that Conn closes or its session times out.
type Conn interface {
	// Exists reports whether a node is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// CreatePersistent creates a node that outlives the session. Creating an existing
	// node is not an error.
	CreatePersistent(ctx context.Context, path string) error

	// CreateEphemeralSequential creates a session-bound child whose name is pathPrefix
	// plus a unique monotonic suffix, and returns the actual path.
	CreateEphemeralSequential(ctx context.Context, pathPrefix string, payload []byte) (string, error)

	// GetChildren lists the direct child names under path.
	GetChildren(ctx context.Context, path string) ([]string, error)

	// ReadData returns the payload stored at path, or ErrNoNode.
	ReadData(ctx context.Context, path string) ([]byte, error)

	// Close ends the session; every ephemeral node it created is removed.
	Close() error
}

// Registrar is the server-facing side of the registry: publish endpoints, and close
// the session on shutdown so they vanish.
type Registrar interface {
	Register(ctx context.Context, serviceName, serviceAddress string) error
	Close() error
}

// Discoverer resolves a service key to one live endpoint address.
type Discoverer interface {
	Discover(ctx context.Context, serviceName string) (string, error)
}
