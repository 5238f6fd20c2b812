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
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Interceptor and the gRPC helpers built on it.
type Option func(*config)

type config struct {
	sink           Sink
	traceContext   bool
	codeFuncs      []CodeFunc
	skipMethods    map[string]struct{}
	enableOTel     bool
	tracerProvider trace.TracerProvider
	propagators    propagation.TextMapPropagator
}

// defaultConfig returns the baseline configuration.
func defaultConfig() *config {
	return &config{
		traceContext: true,
		enableOTel:   true,
	}
}

// applyOptions applies the provided Option list, starting from defaultConfig.
func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.sink == nil {
		cfg.sink = NewLogger(nil)
	}
	return cfg
}

// WithSink sets the destination of finished call records. When omitted, a
// Logger over slog.Default is used.
func WithSink(sink Sink) Option {
	return func(cfg *config) {
		cfg.sink = sink
	}
}

// WithTraceContext toggles reading trace_id and span_id from the recording
// span carried by the call context. Enabled by default.
func WithTraceContext(enabled bool) Option {
	return func(cfg *config) {
		cfg.traceContext = enabled
	}
}

// WithCodeFunc registers a status code extractor consulted before gRPC status
// errors, for RPC frameworks whose errors carry their own codes.
func WithCodeFunc(fn CodeFunc) Option {
	return func(cfg *config) {
		if fn != nil {
			cfg.codeFuncs = append(cfg.codeFuncs, fn)
		}
	}
}

// WithSkipMethods excludes calls to the given full method names (for example
// "/grpc.health.v1.Health/Check") from the gRPC interceptors and from
// Interceptor.Skips, which other framework adapters consult.
func WithSkipMethods(fullMethods ...string) Option {
	return func(cfg *config) {
		for _, m := range fullMethods {
			m = strings.TrimSpace(m)
			if m == "" {
				continue
			}
			if !strings.HasPrefix(m, "/") {
				m = "/" + m
			}
			if cfg.skipMethods == nil {
				cfg.skipMethods = make(map[string]struct{})
			}
			cfg.skipMethods[m] = struct{}{}
		}
	}
}

// WithOTel enables or disables the otelgrpc StatsHandlers installed by
// ServerOptions and DialOptions. Enabled by default.
func WithOTel(enabled bool) Option {
	return func(cfg *config) {
		cfg.enableOTel = enabled
	}
}

// WithTracerProvider configures the tracer provider used when composing
// otelgrpc StatsHandlers.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithPropagators sets the text map propagator used by the otelgrpc
// StatsHandlers. When omitted, the global propagator is used.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.propagators = p
	}
}

// matcher returns the selector used to skip configured methods, or nil when
// every call is logged.
func (cfg *config) matcher() selector.Matcher {
	if len(cfg.skipMethods) == 0 {
		return nil
	}
	skip := cfg.skipMethods
	return selector.MatchFunc(func(_ context.Context, callMeta interceptors.CallMeta) bool {
		_, skipped := skip[callMeta.FullMethod()]
		return !skipped
	})
}
