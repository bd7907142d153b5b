package advance

import (
	"sync"
	"testing"
	"time"
)

type blockingObserver struct {
	mu    sync.Mutex
	seen  []string
	gate  chan struct{}
	gated bool
}

func (b *blockingObserver) ObserveNodeLatency(nodeName string, _ time.Duration) {
	if b.gated {
		<-b.gate
	}
	b.mu.Lock()
	b.seen = append(b.seen, nodeName)
	b.mu.Unlock()
}

func TestAsyncObserver_ForwardsEvents(t *testing.T) {
	inner := &blockingObserver{}
	obs := NewAsyncNodeLatencyObserver(inner, 8)

	obs.ObserveNodeLatency("EligibilityNode", time.Millisecond)
	obs.ObserveNodeLatency("PaydaySolvencyNode", time.Millisecond)
	obs.Close()

	inner.mu.Lock()
	defer inner.mu.Unlock()
	if len(inner.seen) != 2 {
		t.Fatalf("expected 2 forwarded events, got %d", len(inner.seen))
	}
	if inner.seen[0] != "EligibilityNode" || inner.seen[1] != "PaydaySolvencyNode" {
		t.Fatalf("unexpected order: %#v", inner.seen)
	}
	if obs.Dropped() != 0 {
		t.Fatalf("unexpected drops: %d", obs.Dropped())
	}
}

func TestAsyncObserver_DropsWhenBufferFull(t *testing.T) {
	inner := &blockingObserver{gate: make(chan struct{}), gated: true}
	obs := NewAsyncNodeLatencyObserver(inner, 1)

	// First event parks in the worker, second fills the buffer, the rest
	// must drop instead of blocking the traversal.
	for i := 0; i < 5; i++ {
		obs.ObserveNodeLatency("Node", time.Millisecond)
	}
	if obs.Dropped() == 0 {
		t.Fatalf("expected drops with full buffer")
	}

	close(inner.gate)
	obs.Close()
}

func TestAsyncObserver_ObserveAfterCloseCountsAsDropped(t *testing.T) {
	obs := NewAsyncNodeLatencyObserver(&blockingObserver{}, 4)
	obs.Close()

	obs.ObserveNodeLatency("Node", time.Millisecond)
	if obs.Dropped() != 1 {
		t.Fatalf("expected 1 drop after close, got %d", obs.Dropped())
	}
}
