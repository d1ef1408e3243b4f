// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kafka publishes progress reports to a Kafka topic as JSON events.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/poiesic/tutorder/progress"
)

// Event is the message value written for each report.
type Event struct {
	JobID string `json:"job_id"`
	Stage string `json:"stage"`
	progress.Event
}

// messageWriter abstracts kafka.Writer for testability.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher owns the Kafka writer shared by every job's sink.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates an asynchronous writer for topic.
// brokers may hold comma-separated host:port lists.
func NewPublisher(brokers []string, topic string) *Publisher {
	var addrs []string
	for _, b := range brokers {
		for _, a := range strings.Split(b, ",") {
			if a = strings.TrimSpace(a); a != "" {
				addrs = append(addrs, a)
			}
		}
	}
	p := &Publisher{logger: slog.Default().With("component", "kafka-progress", "topic", topic)}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				p.logger.Warn("failed to publish progress", "messages", len(msgs), "err", err)
			}
		},
	}
	return p
}

// NewPublisherWith is only for tests to inject a fake writer.
func NewPublisherWith(w messageWriter) *Publisher {
	return &Publisher{writer: w, logger: slog.Default().With("component", "kafka-progress")}
}

// Sink returns a progress sink publishing reports for one job.
// Messages are keyed by job ID so a job's events stay ordered.
func (p *Publisher) Sink(jobID, stage string) progress.Sink {
	return progress.Func(func(percent float64, message string) {
		p.publish(Event{
			JobID: jobID,
			Stage: stage,
			Event: progress.Event{Percent: percent, Message: message, Time: time.Now().UTC()},
		})
	})
}

func (p *Publisher) publish(ev Event) {
	b, err := json.Marshal(&ev)
	if err != nil {
		p.logger.Warn("failed to encode progress", "err", err)
		return
	}
	if err := p.writer.WriteMessages(context.Background(), kafka.Message{Key: []byte(ev.JobID), Value: b}); err != nil {
		p.logger.Warn("failed to publish progress", "job", ev.JobID, "err", err)
	}
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
