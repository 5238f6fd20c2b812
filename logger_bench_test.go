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
	"errors"
	"log/slog"
	"testing"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// discardHandler satisfies slog.Handler while discarding all records.
type discardHandler struct {
	level slog.Level
}

// Enabled reports levels at or above the configured minimum.
func (h discardHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.level }

// Handle drops records and avoids allocations.
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }

// WithAttrs returns the handler unchanged for attribute chaining.
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

// WithGroup returns the handler because grouping is irrelevant for benchmarks.
func (h discardHandler) WithGroup(string) slog.Handler { return h }

// BenchmarkLogger measures adapter cost when converting simple fields.
func BenchmarkLogger(b *testing.B) {
	adapter := NewLogger(nil, WithLogger(slog.New(discardHandler{level: slog.LevelDebug})))

	ctx := context.Background()
	for i := 0; b.Loop(); i++ {
		adapter.Log(ctx, grpc_logging.LevelInfo, "bench",
			"id", i,
			"user", "abc",
			"ok", true,
		)
	}
}

// BenchmarkInterceptInfo measures a successful call recorded at INFO.
func BenchmarkInterceptInfo(b *testing.B) {
	benchmarkIntercept(b, slog.LevelInfo, nil)
}

// BenchmarkInterceptDebug measures a successful call recorded with bodies.
func BenchmarkInterceptDebug(b *testing.B) {
	benchmarkIntercept(b, slog.LevelDebug, nil)
}

// BenchmarkInterceptFailure measures a failed call, including stack capture.
func BenchmarkInterceptFailure(b *testing.B) {
	benchmarkIntercept(b, slog.LevelInfo, errors.New("boom"))
}

// BenchmarkInterceptDisabled measures the cost when the sink is below INFO.
func BenchmarkInterceptDisabled(b *testing.B) {
	benchmarkIntercept(b, slog.LevelWarn, nil)
}

func benchmarkIntercept(b *testing.B, level slog.Level, err error) {
	in := New(WithSink(NewLogger(nil, WithLogger(slog.New(discardHandler{level: level})))))
	ctx := context.Background()
	req := wrapperspb.String("Ping")
	resp := wrapperspb.String("Pong!")
	call := Call{
		FullMethod: "/support.PingServer/RequestResponsePing",
		Type:       MethodUnary,
		Component:  ComponentServer,
		Request:    req,
	}
	for b.Loop() {
		_, _ = in.Intercept(ctx, call, func(context.Context) (any, error) {
			if err != nil {
				return nil, err
			}
			return resp, nil
		})
	}
}
