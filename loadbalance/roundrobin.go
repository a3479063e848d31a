package loadbalance

import (
	"fmt"
	"sync/atomic"
)

// RoundRobinBalancer cycles through providers in order. Uses an atomic counter for
// lock-free, goroutine-safe operation.
type RoundRobinBalancer struct {
	counter int64
}

func (b *RoundRobinBalancer) Pick(children []string) (string, error) {
	if len(children) == 0 {
		return "", fmt.Errorf("no providers available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(children))
	return children[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
