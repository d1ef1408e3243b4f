package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_Sink(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWith(w)

	sink := p.Sink("job-1", "ingest")
	sink.Report(33.3, "processed 4 orders")
	sink.Report(100, "done")

	require.Len(t, w.msgs, 2)
	assert.Equal(t, []byte("job-1"), w.msgs[0].Key)

	var ev Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "job-1", ev.JobID)
	assert.Equal(t, "ingest", ev.Stage)
	assert.InDelta(t, 33.3, ev.Percent, 0.001)
	assert.Equal(t, "processed 4 orders", ev.Message)
	assert.False(t, ev.Time.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_WriteErrorIsSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewPublisherWith(w)

	assert.NotPanics(t, func() {
		p.Sink("job-2", "enrich").Report(50, "half")
	})
	assert.Empty(t, w.msgs)
}

func TestNewPublisher(t *testing.T) {
	p := NewPublisher([]string{"a:9092, b:9092", " ", "c:9092"}, "tutorder.progress")
	kw, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.True(t, kw.Async)
	assert.Equal(t, "tutorder.progress", kw.Topic)
	assert.Contains(t, kw.Addr.String(), "b:9092")
}
