package registry

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdConn implements Conn on etcd v3. The mapping:
//
//   - session        → a lease granted at connect time, renewed by KeepAlive
//   - persistent node → a key written without a lease
//   - ephemeral node  → a key written under the session lease; lease revocation
//     (Close) or expiry (crash, SessionTimeout) deletes it
//   - children        → keys sharing the node's path prefix, one level deep
//
// Sequential child names take their suffix from the lease id plus a per-session
// counter: unique across sessions, monotonic within one.
type EtcdConn struct {
	client    *clientv3.Client
	lease     clientv3.LeaseID
	seq       atomic.Uint64
	keepAlive context.CancelFunc
}

// DialEtcd opens a session: connect within connectionTimeout, grant a lease of
// sessionTimeout, and start renewing it in the background.
func DialEtcd(endpoints []string, sessionTimeout, connectionTimeout time.Duration) (*EtcdConn, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: connectionTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionClosed, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	ttl := int64(sessionTimeout / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	lease, err := client.Grant(ctx, ttl)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("grant session lease: %w", err)
	}

	kaCtx, kaCancel := context.WithCancel(context.Background())
	ch, err := client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		kaCancel()
		client.Close()
		return nil, fmt.Errorf("keep session alive: %w", err)
	}
	// Drain keep-alive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()

	return &EtcdConn{client: client, lease: lease.ID, keepAlive: kaCancel}, nil
}

func (c *EtcdConn) Exists(ctx context.Context, path string) (bool, error) {
	resp, err := c.client.Get(ctx, path, clientv3.WithCountOnly())
	if err != nil {
		return false, err
	}
	return resp.Count > 0, nil
}

func (c *EtcdConn) CreatePersistent(ctx context.Context, path string) error {
	// Put only when absent, so concurrent creators do not clobber each other.
	_, err := c.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(path), "=", 0)).
		Then(clientv3.OpPut(path, "")).
		Commit()
	return err
}

func (c *EtcdConn) CreateEphemeralSequential(ctx context.Context, pathPrefix string, payload []byte) (string, error) {
	name := fmt.Sprintf("%s%016x%04d", pathPrefix, uint64(c.lease), c.seq.Add(1))
	_, err := c.client.Put(ctx, name, string(payload), clientv3.WithLease(c.lease))
	if err != nil {
		return "", err
	}
	return name, nil
}

func (c *EtcdConn) GetChildren(ctx context.Context, path string) ([]string, error) {
	prefix := path + "/"
	resp, err := c.client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, err
	}
	var children []string
	for _, kv := range resp.Kvs {
		name := strings.TrimPrefix(string(kv.Key), prefix)
		if name != "" && !strings.Contains(name, "/") {
			children = append(children, name)
		}
	}
	return children, nil
}

func (c *EtcdConn) ReadData(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoNode, path)
	}
	return resp.Kvs[0].Value, nil
}

// Close revokes the session lease — deleting every ephemeral node this session
// created — and closes the client.
func (c *EtcdConn) Close() error {
	c.keepAlive()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, revokeErr := c.client.Revoke(ctx, c.lease)
	closeErr := c.client.Close()
	if revokeErr != nil {
		return revokeErr
	}
	return closeErr
}
