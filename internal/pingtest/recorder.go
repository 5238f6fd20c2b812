// Copyright 2025-2026 Patrick J. Scruggs
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

package pingtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
)

// Entry is one captured log call.
type Entry struct {
	Level   grpc_logging.Level
	Message string
	Fields  map[string]any
}

// Has reports whether key was logged.
func (e Entry) Has(key string) bool {
	_, ok := e.Fields[key]
	return ok
}

// Recorder is a log sink that keeps every entry in memory. It reports levels
// at or above Min as enabled.
type Recorder struct {
	Min grpc_logging.Level

	mu      sync.Mutex
	entries []Entry
}

// NewRecorder returns a Recorder enabled at level and above.
func NewRecorder(level grpc_logging.Level) *Recorder {
	return &Recorder{Min: level}
}

// Log implements go-grpc-middleware's logging.Logger.
func (r *Recorder) Log(_ context.Context, level grpc_logging.Level, msg string, fields ...any) {
	m := make(map[string]any, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		m[fmt.Sprint(fields[i])] = fields[i+1]
	}
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg, Fields: m})
	r.mu.Unlock()
}

// Enabled reports whether level is at or above r.Min.
func (r *Recorder) Enabled(_ context.Context, level grpc_logging.Level) bool {
	return level >= r.Min
}

// Entries returns a copy of everything logged so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Wait returns the entries once at least n were logged, failing tb after a
// few seconds otherwise.
func (r *Recorder) Wait(tb testing.TB, n int) []Entry {
	tb.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		entries := r.Entries()
		if len(entries) >= n {
			return entries
		}
		if time.Now().After(deadline) {
			tb.Fatalf("expected %d log entries, got %d", n, len(entries))
		}
		time.Sleep(5 * time.Millisecond)
	}
}
