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

// Package rpclog intercepts RPC calls and emits exactly one structured record
// per call describing its identity, outcome and, optionally, its payloads and
// trace linkage.
//
// A record always carries pid, grpc.component, grpc.service, grpc.method,
// grpc.method_type and the integer grpc.code (0 on success). Failed calls add
// error (the Go type of the error), error_message and backtrace. When the call
// context carries a recording OpenTelemetry span, trace_id and span_id are
// added. When the sink is enabled at DEBUG, request and response bodies are
// converted to plain maps (see [ToPlain]) and the record is emitted at DEBUG;
// otherwise it is emitted at INFO without bodies. Nothing is done at all when
// the sink is not enabled at INFO.
//
// The interceptors never change the outcome of a call: errors are returned
// unchanged and panics are recorded and re-raised.
//
// The sink is any [Sink]: a go-grpc-middleware logging.Logger that can report
// enabled levels. [NewLogger] provides one on top of slog and slogcp.
//
// Quick start:
//
//	handler, _ := slogcp.NewHandler(os.Stdout)
//	sink := rpclog.WithSink(rpclog.NewLogger(handler))
//
//	server := grpc.NewServer(rpclog.ServerOptions(sink)...)
//
//	conn, _ := grpc.NewClient(
//		addr,
//		append(
//			[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
//			rpclog.DialOptions(sink)...,
//		)...,
//	)
//
// ServerOptions and DialOptions also install otelgrpc StatsHandlers; use
// [UnaryServerInterceptor], [StreamServerInterceptor], [UnaryClientInterceptor]
// and [StreamClientInterceptor] directly to wire only the interceptors. Other
// RPC frameworks can drive the same engine through [Interceptor.Begin] and
// [Entry], as the rpclogconnect package does for connect.
package rpclog
