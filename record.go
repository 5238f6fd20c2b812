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
	"path"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"go.opentelemetry.io/otel/trace"
)

// Field keys of the emitted record. Log parsers and dashboards depend on
// these names and on the presence rules documented on Record.
const (
	PIDKey          = "pid"
	ComponentKey    = "grpc.component"
	ServiceKey      = "grpc.service"
	MethodKey       = "grpc.method"
	MethodTypeKey   = "grpc.method_type"
	TraceIDKey      = "trace_id"
	SpanIDKey       = "span_id"
	CodeKey         = "grpc.code"
	ErrorTypeKey    = "error"
	ErrorMessageKey = "error_message"
	BacktraceKey    = "backtrace"
	RequestKey      = "request"
	ResponseKey     = "response"
)

// Message is the log message attached to every finished call record.
const Message = "finished call"

// MethodType is the call shape, shared with go-grpc-middleware.
type MethodType = interceptors.GRPCType

// Call shapes.
const (
	MethodUnary        = interceptors.Unary
	MethodClientStream = interceptors.ClientStream
	MethodServerStream = interceptors.ServerStream
	MethodBidiStream   = interceptors.BidiStream
)

// Component names the side of the call doing the intercepting.
type Component string

// Components.
const (
	ComponentClient Component = "client"
	ComponentServer Component = "server"
)

// Call describes a single intercepted invocation.
type Call struct {
	// FullMethod is the fully-qualified method, e.g. "/support.PingServer/RequestResponsePing".
	FullMethod string
	Type       MethodType
	Component  Component
	// Request is the outbound or inbound message when one is available up front.
	Request any
}

// Record is the structured log record for one call. It is always built with
// every field it can hold and projected down by Fields.
//
// Presence rules:
//   - pid, component, service, method, method type and code are always present.
//   - trace_id and span_id are present iff a recording span was in the context
//     when the record was built.
//   - error, error_message and backtrace are present iff the call failed.
//   - request and response are present iff the record is verbose and the
//     value is non-nil.
type Record struct {
	PID        int
	Component  Component
	Service    string
	Method     string
	MethodType MethodType
	TraceID    string
	SpanID     string
	Outcome    Outcome
	Request    any
	Response   any
}

// Fields renders the record as go-grpc-middleware logging fields. Bodies are
// included only when verbose is true.
func (r *Record) Fields(verbose bool) grpc_logging.Fields {
	fields := make(grpc_logging.Fields, 0, 26)
	fields = append(fields,
		PIDKey, r.PID,
		ComponentKey, string(r.Component),
		ServiceKey, r.Service,
		MethodKey, r.Method,
		MethodTypeKey, string(r.MethodType),
	)
	if r.TraceID != "" && r.SpanID != "" {
		fields = append(fields, TraceIDKey, r.TraceID, SpanIDKey, r.SpanID)
	}
	fields = append(fields, CodeKey, int(r.Outcome.Code))
	if r.Outcome.Failed() {
		fields = append(fields,
			ErrorTypeKey, r.Outcome.ErrorType,
			ErrorMessageKey, r.Outcome.ErrorMessage,
			BacktraceKey, r.Outcome.StackTrace,
		)
	}
	if verbose {
		if r.Request != nil {
			fields = append(fields, RequestKey, r.Request)
		}
		if r.Response != nil {
			fields = append(fields, ResponseKey, r.Response)
		}
	}
	return fields
}

// buildRecord derives the base record for call before it runs.
func buildRecord(ctx context.Context, call Call, withTrace bool) Record {
	service, method := splitMethodName(call.FullMethod)
	rec := Record{
		PID:        os.Getpid(),
		Component:  call.Component,
		Service:    service,
		Method:     method,
		MethodType: call.Type,
	}
	if withTrace {
		rec.TraceID, rec.SpanID, _ = recordingSpanIDs(ctx)
	}
	return rec
}

// splitMethodName parses a gRPC full method name into service and method components.
//
// For example:
//   - "/support.PingServer/RequestResponsePing" → "support.PingServer", "RequestResponsePing"
//   - "support.PingServer/RequestResponsePing" → same, the leading slash is optional
//   - "/Ping" → "unknown", "Ping"
func splitMethodName(fullMethodName string) (service, method string) {
	fullMethodName = strings.TrimPrefix(fullMethodName, "/")
	service = path.Dir(fullMethodName)
	method = path.Base(fullMethodName)

	if service == "." || service == "" {
		service = "unknown"
	}
	return service, method
}

// recordingSpanIDs returns the hex trace and span IDs of the span carried by
// ctx when that span is recording. Non-recording and invalid spans yield ok=false.
func recordingSpanIDs(ctx context.Context) (traceID, spanID string, ok bool) {
	if ctx == nil {
		return "", "", false
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return "", "", false
	}
	sc := span.SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
