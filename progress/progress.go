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

// Package progress carries best-effort progress reports from long-running
// stages to whoever is watching: a terminal, an HTTP client or a Kafka topic.
//
// A Sink must never block or fail the stage that reports to it. Sinks that
// do I/O either buffer (Async) or hand off to a non-blocking client.
package progress

import (
	"time"
)

// Sink receives progress reports. Percent is in [0, 100].
type Sink interface {
	Report(percent float64, message string)
}

// Event is one progress report with the time it was made.
type Event struct {
	Percent float64   `json:"percent"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type nop struct{}

func (nop) Report(float64, string) {}

// Nop discards every report.
var Nop Sink = nop{}

// Func adapts a function to a Sink.
type Func func(percent float64, message string)

// Report calls f.
func (f Func) Report(percent float64, message string) {
	f(percent, message)
}

type multi []Sink

func (m multi) Report(percent float64, message string) {
	for _, s := range m {
		s.Report(percent, message)
	}
}

// Multi fans each report out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	switch len(m) {
	case 0:
		return Nop
	case 1:
		return m[0]
	}
	return m
}

// OrNop returns s, or Nop if s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop
	}
	return s
}

// Clamp limits percent to [0, 100].
func Clamp(percent float64) float64 {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	}
	return percent
}

// Fraction returns done/total scaled to span percent, clamped.
// A zero total yields span.
func Fraction(done, total int, span float64) float64 {
	if total <= 0 {
		return Clamp(span)
	}
	return Clamp(float64(done) / float64(total) * span)
}
