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

package rpclog

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/codes"
)

// TestSplitMethodName covers well-formed, nested and malformed method names.
func TestSplitMethodName(t *testing.T) {
	tests := []struct {
		in          string
		wantService string
		wantMethod  string
	}{
		{"/support.PingServer/RequestResponsePing", "support.PingServer", "RequestResponsePing"},
		{"support.PingServer/RequestResponsePing", "support.PingServer", "RequestResponsePing"},
		{"/a/b.Svc/Call", "a/b.Svc", "Call"},
		{"/Bare", "unknown", "Bare"},
		{"", "unknown", "."},
	}
	for _, tt := range tests {
		service, method := splitMethodName(tt.in)
		if service != tt.wantService || method != tt.wantMethod {
			t.Fatalf("%q: expected (%q, %q), got (%q, %q)", tt.in, tt.wantService, tt.wantMethod, service, method)
		}
	}
}

// TestRecordFieldsSuccess checks the always-present keys and the absence of
// error and body keys on success.
func TestRecordFieldsSuccess(t *testing.T) {
	rec := buildRecord(context.Background(), Call{
		FullMethod: "/support.PingServer/RequestResponsePing",
		Type:       MethodUnary,
		Component:  ComponentClient,
	}, true)
	rec.Request = map[string]any{"value": "Ping"}
	rec.Response = map[string]any{"value": "Pong!"}

	got := fieldMap(rec.Fields(false))
	want := map[string]any{
		PIDKey:        os.Getpid(),
		ComponentKey:  "client",
		ServiceKey:    "support.PingServer",
		MethodKey:     "RequestResponsePing",
		MethodTypeKey: "unary",
		CodeKey:       0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}
}

// TestRecordFieldsVerboseFailure checks error keys and bodies in a verbose projection.
func TestRecordFieldsVerboseFailure(t *testing.T) {
	rec := Record{
		PID:        42,
		Component:  ComponentServer,
		Service:    "support.PingServer",
		Method:     "ClientStreamerPing",
		MethodType: MethodClientStream,
		Outcome: Outcome{
			Kind:         CallFailedWithStatus,
			Code:         codes.InvalidArgument,
			ErrorType:    "*status.Error",
			ErrorMessage: "rpc error: code = InvalidArgument desc = bad ping",
			StackTrace:   []string{"main.main /src/main.go:10"},
		},
		Request: map[string]any{"value": "Ping"},
	}

	got := fieldMap(rec.Fields(true))
	want := map[string]any{
		PIDKey:          42,
		ComponentKey:    "server",
		ServiceKey:      "support.PingServer",
		MethodKey:       "ClientStreamerPing",
		MethodTypeKey:   "client_stream",
		CodeKey:         3,
		ErrorTypeKey:    "*status.Error",
		ErrorMessageKey: "rpc error: code = InvalidArgument desc = bad ping",
		BacktraceKey:    []string{"main.main /src/main.go:10"},
		RequestKey:      map[string]any{"value": "Ping"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}
}

// TestBuildRecordTraceIDs verifies trace fields come only from a recording span.
func TestBuildRecordTraceIDs(t *testing.T) {
	call := Call{FullMethod: "/support.PingServer/RequestResponsePing", Type: MethodUnary, Component: ComponentServer}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "call")
	defer span.End()

	rec := buildRecord(ctx, call, true)
	if rec.TraceID != span.SpanContext().TraceID().String() {
		t.Fatalf("expected trace id %s, got %q", span.SpanContext().TraceID(), rec.TraceID)
	}
	if rec.SpanID != span.SpanContext().SpanID().String() {
		t.Fatalf("expected span id %s, got %q", span.SpanContext().SpanID(), rec.SpanID)
	}
	fields := fieldMap(rec.Fields(false))
	if fields[TraceIDKey] != rec.TraceID || fields[SpanIDKey] != rec.SpanID {
		t.Fatalf("expected trace fields in projection, got %v", fields)
	}

	if rec := buildRecord(ctx, call, false); rec.TraceID != "" || rec.SpanID != "" {
		t.Fatalf("expected no trace ids when disabled, got %q/%q", rec.TraceID, rec.SpanID)
	}

	unsampled := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
	t.Cleanup(func() { _ = unsampled.Shutdown(context.Background()) })
	quietCtx, quiet := unsampled.Tracer("test").Start(context.Background(), "call")
	defer quiet.End()

	rec = buildRecord(quietCtx, call, true)
	if rec.TraceID != "" || rec.SpanID != "" {
		t.Fatalf("expected no trace ids for a non-recording span, got %q/%q", rec.TraceID, rec.SpanID)
	}
	if _, ok := fieldMap(rec.Fields(false))[TraceIDKey]; ok {
		t.Fatalf("expected trace_id to be omitted")
	}

	if rec := buildRecord(context.Background(), call, true); rec.TraceID != "" {
		t.Fatalf("expected no trace ids without a span, got %q", rec.TraceID)
	}
}

// fieldMap turns alternating key/value fields into a map.
func fieldMap(fields []any) map[string]any {
	out := make(map[string]any, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		out[fields[i].(string)] = fields[i+1]
	}
	return out
}
