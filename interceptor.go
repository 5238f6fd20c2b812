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
	"sync"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
)

// Interceptor builds and emits one record per call. It holds only immutable
// configuration and is safe for concurrent use.
type Interceptor struct {
	cfg *config
}

// New returns an Interceptor configured by opts.
func New(opts ...Option) *Interceptor {
	return &Interceptor{cfg: applyOptions(opts)}
}

// Begin starts tracking call. It returns nil when the sink is not enabled at
// INFO, in which case no work is done; every Entry method accepts a nil
// receiver. Whether bodies are recorded is decided here, once, by asking the
// sink about DEBUG.
func (in *Interceptor) Begin(ctx context.Context, call Call) *Entry {
	if in == nil || in.cfg == nil || in.cfg.sink == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sink := in.cfg.sink
	if !sink.Enabled(ctx, grpc_logging.LevelInfo) {
		return nil
	}
	e := &Entry{
		ctx:       ctx,
		sink:      sink,
		codeFuncs: in.cfg.codeFuncs,
		verbose:   sink.Enabled(ctx, grpc_logging.LevelDebug),
		record:    buildRecord(ctx, call, in.cfg.traceContext),
	}
	e.SetRequest(call.Request)
	return e
}

// Skips reports whether fullMethod is excluded by WithSkipMethods.
func (in *Interceptor) Skips(fullMethod string) bool {
	if in == nil || in.cfg == nil {
		return false
	}
	_, skipped := in.cfg.skipMethods[fullMethod]
	return skipped
}

// Intercept runs fn exactly once as call and emits its record. The value and
// error returned by fn are returned unchanged; a panic in fn is recorded and
// then re-raised with the original value.
func (in *Interceptor) Intercept(ctx context.Context, call Call, fn func(context.Context) (any, error)) (any, error) {
	return in.Begin(ctx, call).Run(func() (any, error) {
		return fn(ctx)
	})
}

// Entry is the in-flight record of a single call.
type Entry struct {
	ctx       context.Context
	sink      Sink
	codeFuncs []CodeFunc
	verbose   bool

	mu     sync.Mutex
	record Record
	once   sync.Once
}

// Verbose reports whether request and response bodies are recorded.
func (e *Entry) Verbose() bool {
	return e != nil && e.verbose
}

// ErrCallAborted is recorded for a call whose function exited without
// returning, e.g. through runtime.Goexit.
var ErrCallAborted = errors.New("rpclog: call exited without returning")

// Run executes fn exactly once and finishes the entry on every exit path. A
// successful result is recorded as the response.
func (e *Entry) Run(fn func() (any, error)) (resp any, err error) {
	if e == nil {
		return fn()
	}
	returned := false
	defer func() {
		if r := recover(); r != nil {
			e.finishPanic(r)
			panic(r)
		}
		if !returned {
			e.Finish(ErrCallAborted)
			return
		}
		if err == nil {
			e.SetResponse(resp)
		}
		e.Finish(err)
	}()
	resp, err = fn()
	returned = true
	return resp, err
}

// SetRequest records m as the request body. It is a no-op unless the entry
// is verbose. Protobuf messages are converted immediately, so later reuse of
// m does not change the record.
func (e *Entry) SetRequest(m any) {
	if !e.Verbose() {
		return
	}
	body := ToPlain(m)
	if body == nil {
		return
	}
	e.mu.Lock()
	e.record.Request = body
	e.mu.Unlock()
}

// SetResponse records m as the response body under the same rules as SetRequest.
func (e *Entry) SetResponse(m any) {
	if !e.Verbose() {
		return
	}
	body := ToPlain(m)
	if body == nil {
		return
	}
	e.mu.Lock()
	e.record.Response = body
	e.mu.Unlock()
}

// Finish classifies err and emits the record. Only the first call to Finish
// (or to the panic path of Run) emits; later calls are ignored.
func (e *Entry) Finish(err error) {
	if e == nil {
		return
	}
	e.once.Do(func() {
		e.emit(classify(err, e.codeFuncs))
	})
}

// finishOnPanic records a panic unwinding through a call and re-raises it.
// It must be deferred directly.
func (e *Entry) finishOnPanic() {
	if r := recover(); r != nil {
		e.finishPanic(r)
		panic(r)
	}
}

// finishPanic emits the record for a recovered panic value.
func (e *Entry) finishPanic(v any) {
	if e == nil {
		return
	}
	e.once.Do(func() {
		e.emit(classifyPanic(v))
	})
}

// emit finalizes the record and hands it to the sink.
func (e *Entry) emit(out Outcome) {
	e.mu.Lock()
	e.record.Outcome = out
	fields := e.record.Fields(e.verbose)
	e.mu.Unlock()

	level := grpc_logging.LevelInfo
	if e.verbose {
		level = grpc_logging.LevelDebug
	}

	// The sink owns its own failures; a panicking sink must not replace the
	// call's outcome.
	defer func() {
		_ = recover()
	}()
	e.sink.Log(e.ctx, level, Message, fields...)
}
