package progress

import (
	"sync"
	"time"
)

// Recorder keeps every report in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Report appends the report.
func (r *Recorder) Report(percent float64, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Percent: percent, Message: message, Time: time.Now()})
}

// Events returns a copy of the recorded reports.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Percents returns the recorded percentages in order.
func (r *Recorder) Percents() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Percent
	}
	return out
}

// Last returns the most recent report.
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}
