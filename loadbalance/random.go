package loadbalance

import (
	"fmt"
	"math/rand"
)

// RandomBalancer picks uniformly at random. math/rand's global source is already
// goroutine-safe and per-OS-thread sharded, so no extra locking is needed here.
type RandomBalancer struct{}

func (b *RandomBalancer) Pick(children []string) (string, error) {
	if len(children) == 0 {
		return "", fmt.Errorf("no providers available")
	}
	return children[rand.Intn(len(children))], nil
}

func (b *RandomBalancer) Name() string {
	return "Random"
}
