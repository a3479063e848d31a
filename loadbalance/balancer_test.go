package loadbalance

import "testing"

var testChildren = []string{"address-0000000001", "address-0000000002", "address-0000000003"}

func TestRandomCoversAllProviders(t *testing.T) {
	b := &RandomBalancer{}
	seen := map[string]int{}
	for i := 0; i < 1000; i++ {
		child, err := b.Pick(testChildren)
		if err != nil {
			t.Fatal(err)
		}
		seen[child]++
	}
	for _, c := range testChildren {
		if seen[c] == 0 {
			t.Errorf("provider %s never picked: %v", c, seen)
		}
	}
}

func TestRandomEmpty(t *testing.T) {
	b := &RandomBalancer{}
	if _, err := b.Pick(nil); err == nil {
		t.Fatal("expect error for empty provider list")
	}
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}
	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		child, err := b.Pick(testChildren)
		if err != nil {
			t.Fatal(err)
		}
		results[i] = child
	}
	child, _ := b.Pick(testChildren)
	if child != results[0] {
		t.Fatalf("expect wrap around to %s, got %s", results[0], child)
	}
}
