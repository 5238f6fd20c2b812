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
	"fmt"
	"log/slog"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/pjscruggs/slogcp"
)

// Sink receives one finished record per intercepted call. It is a
// go-grpc-middleware logging.Logger that also reports enabled levels. Enabled
// is consulted once per call: below INFO nothing is recorded, and bodies are
// captured only when DEBUG is enabled.
type Sink interface {
	grpc_logging.Logger
	Enabled(ctx context.Context, level grpc_logging.Level) bool
}

// Logger implements Sink using a slog.Logger built on slogcp.
type Logger struct {
	log      *slog.Logger
	mapLevel func(grpc_logging.Level) slog.Level
}

type loggerConfig struct {
	logger      *slog.Logger
	levelMapper func(grpc_logging.Level) slog.Level
}

// LoggerOption customizes Logger construction.
type LoggerOption func(*loggerConfig)

// NewLogger creates a Sink backed by the provided slogcp handler. If no handler
// or slog.Logger is provided, the default slog logger is used so existing slogcp
// defaults apply.
//
// Example:
//
//	handler, _ := slogcp.NewHandler(os.Stdout, slogcp.WithLevel(slog.LevelDebug))
//	server := grpc.NewServer(
//		grpc.ChainUnaryInterceptor(rpclog.UnaryServerInterceptor(
//			rpclog.WithSink(rpclog.NewLogger(handler)),
//		)),
//	)
func NewLogger(handler *slogcp.Handler, opts ...LoggerOption) *Logger {
	cfg := loggerConfig{
		levelMapper: defaultLevelMapper,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	switch {
	case cfg.logger != nil:
	case handler != nil:
		cfg.logger = slog.New(handler)
	default:
		cfg.logger = slog.Default()
	}

	if cfg.levelMapper == nil {
		cfg.levelMapper = defaultLevelMapper
	}

	return &Logger{
		log:      cfg.logger,
		mapLevel: cfg.levelMapper,
	}
}

// WithLogger overrides the slog.Logger used by the sink, allowing reuse of an existing logger.
//
// Example:
//
//	base := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	sink := rpclog.NewLogger(nil, rpclog.WithLogger(base))
//	_ = rpclog.UnaryServerInterceptor(rpclog.WithSink(sink))
func WithLogger(logger *slog.Logger) LoggerOption {
	return func(cfg *loggerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithLevelMapper customizes how go-grpc-middleware logging levels map to slog levels.
// The mapping applies both to emitted records and to the Enabled gate.
func WithLevelMapper(mapper func(grpc_logging.Level) slog.Level) LoggerOption {
	return func(cfg *loggerConfig) {
		if mapper != nil {
			cfg.levelMapper = mapper
		}
	}
}

// Log satisfies the go-grpc-middleware logging.Logger interface and forwards entries
// to the underlying slog.Logger, preserving the provided context for trace propagation.
func (l *Logger) Log(ctx context.Context, level grpc_logging.Level, msg string, fields ...any) {
	if l == nil || l.log == nil {
		return
	}
	attrs := buildAttrs(fields)
	l.log.LogAttrs(ctx, l.mapLevel(level), msg, attrs...)
}

// Enabled reports whether the underlying slog.Logger emits records at level.
func (l *Logger) Enabled(ctx context.Context, level grpc_logging.Level) bool {
	if l == nil || l.log == nil {
		return false
	}
	return l.log.Enabled(ctx, l.mapLevel(level))
}

// NewSink lifts a plain go-grpc-middleware logger into a Sink that treats every
// level at or above minLevel as enabled.
func NewSink(logger grpc_logging.Logger, minLevel grpc_logging.Level) Sink {
	return thresholdSink{Logger: logger, min: minLevel}
}

type thresholdSink struct {
	grpc_logging.Logger
	min grpc_logging.Level
}

// Enabled compares level against the fixed threshold.
func (s thresholdSink) Enabled(_ context.Context, level grpc_logging.Level) bool {
	return s.Logger != nil && level >= s.min
}

// defaultLevelMapper converts go-grpc-middleware levels into slog levels.
func defaultLevelMapper(level grpc_logging.Level) slog.Level {
	switch level {
	case grpc_logging.LevelDebug:
		return slog.LevelDebug
	case grpc_logging.LevelInfo:
		return slog.LevelInfo
	case grpc_logging.LevelWarn:
		return slog.LevelWarn
	case grpc_logging.LevelError:
		return slog.LevelError
	default:
		return slog.LevelError
	}
}

// buildAttrs converts logging fields into slog attributes.
func buildAttrs(fields []any) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}

	attrs := make([]slog.Attr, 0, (len(fields)+1)/2)
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		var val any
		if i+1 < len(fields) {
			val = fields[i+1]
		}
		attrs = append(attrs, slog.Any(key, val))
	}
	return attrs
}
