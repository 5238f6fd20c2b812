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

package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"google.golang.org/grpc/codes"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write appends p under the lock.
func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns the buffered output.
func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestRunLogsEveryCall runs the demo over both transports and counts records.
func TestRunLogsEveryCall(t *testing.T) {
	for _, transport := range []string{transportGRPC, transportConnect} {
		t.Run(transport, func(t *testing.T) {
			stdout := &syncBuffer{}
			stderr := &syncBuffer{}
			cmd := newRootCmd()
			cmd.SetOut(stdout)
			cmd.SetErr(stderr)
			cmd.SetArgs([]string{"--transport", transport, "--level", "debug"})

			if err := cmd.Execute(); err != nil {
				t.Fatalf("execute: %v", err)
			}

			// Four calls, each recorded by the client and the server.
			if got := strings.Count(stdout.String(), "finished call"); got != 8 {
				t.Fatalf("expected 8 records, got %d:\n%s", got, stdout.String())
			}
			if !strings.Contains(stderr.String(), "RequestResponsePing: Pong!") {
				t.Fatalf("unexpected replies:\n%s", stderr.String())
			}
		})
	}
}

// TestRunRejectsUnknownTransport checks flag validation.
func TestRunRejectsUnknownTransport(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&syncBuffer{})
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs([]string{"--transport", "carrier-pigeon"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error for an unknown transport")
	}
}

// TestParseCode covers status code flag parsing.
func TestParseCode(t *testing.T) {
	tests := []struct {
		in      string
		want    codes.Code
		wantErr bool
	}{
		{"", codes.OK, false},
		{"INVALID_ARGUMENT", codes.InvalidArgument, false},
		{"not_found", codes.NotFound, false},
		{"NOPE", codes.OK, true},
	}
	for _, tt := range tests {
		got, err := parseCode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %v, got %v", tt.in, tt.want, got)
		}
	}
}
