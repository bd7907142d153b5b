package advance

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// NodeLatencyObserver receives per-node execution latency. Implementations
// must be safe for concurrent use across runs.
type NodeLatencyObserver interface {
	ObserveNodeLatency(nodeName string, duration time.Duration)
}

// RunObserver receives run-level signals for dashboards and alerting.
type RunObserver interface {
	ObserveRun(approved bool, nodesVisited int)
	ObserveMLFallback(modelKey string)
	ObserveAuditFailure()
}

// NodeLatencyLogger writes node latency to structured logs.
type NodeLatencyLogger struct {
	logger *slog.Logger
}

func NewNodeLatencyLogger(logger *slog.Logger) *NodeLatencyLogger {
	return &NodeLatencyLogger{logger: logger}
}

func (l *NodeLatencyLogger) ObserveNodeLatency(nodeName string, duration time.Duration) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug("node latency",
		slog.String("node", nodeName),
		slog.Float64("duration_ms", float64(duration.Microseconds())/1000.0))
}

// AsyncNodeLatencyObserver decouples observation from the traversal hot
// path. Events that do not fit the buffer are dropped and counted.
type AsyncNodeLatencyObserver struct {
	next    NodeLatencyObserver
	events  chan nodeLatencyEvent
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

type nodeLatencyEvent struct {
	nodeName string
	duration time.Duration
}

func NewAsyncNodeLatencyObserver(next NodeLatencyObserver, buffer int) *AsyncNodeLatencyObserver {
	if buffer <= 0 {
		buffer = 1
	}

	o := &AsyncNodeLatencyObserver{
		next:   next,
		events: make(chan nodeLatencyEvent, buffer),
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for ev := range o.events {
			if o.next == nil {
				continue
			}
			o.next.ObserveNodeLatency(ev.nodeName, ev.duration)
		}
	}()

	return o
}

func (o *AsyncNodeLatencyObserver) ObserveNodeLatency(nodeName string, duration time.Duration) {
	if o == nil {
		return
	}
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		o.dropped.Add(1)
		return
	}
	select {
	case o.events <- nodeLatencyEvent{nodeName: nodeName, duration: duration}:
	default:
		o.dropped.Add(1)
	}
	o.mu.RUnlock()
}

func (o *AsyncNodeLatencyObserver) Dropped() uint64 {
	if o == nil {
		return 0
	}
	return o.dropped.Load()
}

func (o *AsyncNodeLatencyObserver) Close() {
	if o == nil {
		return
	}
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.events)
		o.mu.Unlock()
		o.wg.Wait()
	})
}
