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

package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Writer renders reports as a single self-overwriting terminal line.
// A report at 100% ends the line.
type Writer struct {
	writer    io.Writer
	startTime time.Time
	done      bool
	mu        sync.Mutex
}

// NewWriter creates a terminal renderer.
// writer: where to write progress output (typically os.Stderr)
func NewWriter(writer io.Writer) *Writer {
	return &Writer{
		writer:    writer,
		startTime: time.Now(),
	}
}

// Report prints the current progress.
func (w *Writer) Report(percent float64, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		w.startTime = time.Now()
		w.done = false
	}

	percent = Clamp(percent)
	elapsed := time.Since(w.startTime).Truncate(100 * time.Millisecond)
	fmt.Fprintf(w.writer, "\rProgress: %5.1f%% - %s - %s\033[K", percent, message, elapsed)

	if percent >= 100 {
		fmt.Fprintln(w.writer)
		w.done = true
	}
}

// Elapsed returns the time since the current run started.
func (w *Writer) Elapsed() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Since(w.startTime)
}
