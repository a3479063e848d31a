package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryCluster is an in-process coordination store with the same node semantics as
// the etcd backend: persistent nodes, session-bound ephemeral children, hierarchical
// paths. It backs hermetic tests and single-process deployments that want discovery
// without an external store.
type MemoryCluster struct {
	mu    sync.Mutex
	nodes map[string][]byte // path → payload (empty payload for persistent markers)
	seq   uint64
}

func NewMemoryCluster() *MemoryCluster {
	return &MemoryCluster{nodes: make(map[string][]byte)}
}

// Connect opens a new session against the cluster.
func (m *MemoryCluster) Connect() *MemoryConn {
	return &MemoryConn{cluster: m}
}

// MemoryConn is one session. Closing it removes every ephemeral node it created.
type MemoryConn struct {
	cluster *MemoryCluster
	mu      sync.Mutex
	owned   []string
	closed  bool
}

func (c *MemoryConn) Exists(ctx context.Context, path string) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	c.cluster.mu.Lock()
	defer c.cluster.mu.Unlock()
	_, ok := c.cluster.nodes[path]
	return ok, nil
}

func (c *MemoryConn) CreatePersistent(ctx context.Context, path string) error {
	if err := c.check(); err != nil {
		return err
	}
	c.cluster.mu.Lock()
	defer c.cluster.mu.Unlock()
	if _, ok := c.cluster.nodes[path]; !ok {
		c.cluster.nodes[path] = []byte{}
	}
	return nil
}

func (c *MemoryConn) CreateEphemeralSequential(ctx context.Context, pathPrefix string, payload []byte) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	c.cluster.mu.Lock()
	c.cluster.seq++
	name := fmt.Sprintf("%s%010d", pathPrefix, c.cluster.seq)
	c.cluster.nodes[name] = append([]byte(nil), payload...)
	c.cluster.mu.Unlock()

	c.mu.Lock()
	c.owned = append(c.owned, name)
	c.mu.Unlock()
	return name, nil
}

func (c *MemoryConn) GetChildren(ctx context.Context, path string) ([]string, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	prefix := path + "/"
	c.cluster.mu.Lock()
	defer c.cluster.mu.Unlock()
	var children []string
	for p := range c.cluster.nodes {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		name := strings.TrimPrefix(p, prefix)
		if name != "" && !strings.Contains(name, "/") {
			children = append(children, name)
		}
	}
	sort.Strings(children)
	return children, nil
}

func (c *MemoryConn) ReadData(ctx context.Context, path string) ([]byte, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	c.cluster.mu.Lock()
	defer c.cluster.mu.Unlock()
	data, ok := c.cluster.nodes[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoNode, path)
	}
	return append([]byte(nil), data...), nil
}

func (c *MemoryConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	owned := c.owned
	c.owned = nil
	c.mu.Unlock()

	c.cluster.mu.Lock()
	for _, p := range owned {
		delete(c.cluster.nodes, p)
	}
	c.cluster.mu.Unlock()
	return nil
}

func (c *MemoryConn) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSessionClosed
	}
	return nil
}
