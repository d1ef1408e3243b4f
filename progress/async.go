package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Async decouples a stage from a slow sink. Reports are queued in a bounded
// buffer and delivered by a single goroutine; when the buffer is full the
// report is dropped.
type Async struct {
	dst     Sink
	events  chan Event
	done    chan struct{}
	dropped atomic.Int64
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

// NewAsync starts delivering to dst with room for buffer pending reports.
func NewAsync(dst Sink, buffer int) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		dst:    OrNop(dst),
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.events {
		a.dst.Report(ev.Percent, ev.Message)
	}
}

// Report queues a report without blocking.
func (a *Async) Report(percent float64, message string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.events <- Event{Percent: percent, Message: message, Time: time.Now()}:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many reports were discarded because the buffer was full.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting reports and waits until queued ones are delivered.
func (a *Async) Close() {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.events)
		a.mu.Unlock()
	})
	<-a.done
}
