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
	"fmt"
	"runtime"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxStackFrames = 64

// OutcomeKind classifies how a call ended.
type OutcomeKind int

const (
	// CallSucceeded means the call returned without error.
	CallSucceeded OutcomeKind = iota
	// CallFailedWithStatus means the error carried a standard status code.
	CallFailedWithStatus
	// CallFailedUnknown means the error carried no status and is reported as UNKNOWN.
	CallFailedUnknown
)

// String returns the kind name.
func (k OutcomeKind) String() string {
	switch k {
	case CallSucceeded:
		return "CallSucceeded"
	case CallFailedWithStatus:
		return "CallFailedWithStatus"
	case CallFailedUnknown:
		return "CallFailedUnknown"
	default:
		return "OutcomeKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Outcome is the classified result of a call.
type Outcome struct {
	Kind         OutcomeKind
	Code         codes.Code
	ErrorType    string
	ErrorMessage string
	StackTrace   []string
}

// Failed reports whether the outcome describes a failed call.
func (o Outcome) Failed() bool {
	return o.Kind != CallSucceeded
}

// CodeFunc extracts a status code from errors produced by a specific RPC
// framework. It returns ok=false when err is not one of its errors.
type CodeFunc func(err error) (code codes.Code, ok bool)

// classify turns the error returned by a call into an Outcome. codeFuncs are
// consulted before gRPC status and context errors.
func classify(err error, codeFuncs []CodeFunc) Outcome {
	if err == nil {
		return Outcome{Kind: CallSucceeded, Code: codes.OK}
	}

	out := Outcome{
		Kind:         CallFailedUnknown,
		Code:         codes.Unknown,
		ErrorType:    fmt.Sprintf("%T", err),
		ErrorMessage: err.Error(),
		StackTrace:   errorStack(err),
	}
	if code, ok := statusCode(err, codeFuncs); ok {
		out.Kind = CallFailedWithStatus
		out.Code = code
	}
	return out
}

// classifyPanic builds the Outcome for a panic unwinding through the call.
// It must be called from the deferred function that recovered v.
func classifyPanic(v any) Outcome {
	msg := fmt.Sprint(v)
	if err, ok := v.(error); ok {
		msg = err.Error()
	}
	return Outcome{
		Kind:         CallFailedUnknown,
		Code:         codes.Unknown,
		ErrorType:    fmt.Sprintf("%T", v),
		ErrorMessage: msg,
		StackTrace:   captureStack(),
	}
}

// statusCode resolves the status code carried by err, if any.
func statusCode(err error, codeFuncs []CodeFunc) (codes.Code, bool) {
	for _, fn := range codeFuncs {
		if fn == nil {
			continue
		}
		if code, ok := fn(err); ok {
			return code, true
		}
	}
	if st, ok := status.FromError(err); ok {
		return st.Code(), true
	}
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled, true
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, true
	}
	return codes.Unknown, false
}

// stackTracer is implemented by errors created with github.com/pkg/errors.
type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// errorStack prefers the stack recorded where err was created and falls back
// to the stack at the point the failure is observed.
func errorStack(err error) []string {
	var st stackTracer
	if errors.As(err, &st) {
		frames := st.StackTrace()
		if len(frames) > 0 {
			if len(frames) > maxStackFrames {
				frames = frames[:maxStackFrames]
			}
			pcs := make([]uintptr, len(frames))
			for i, f := range frames {
				pcs[i] = uintptr(f)
			}
			if lines := formatFrames(pcs); len(lines) > 0 {
				return lines
			}
		}
	}
	return captureStack()
}

// captureStack returns the current goroutine stack with leading runtime, sync
// and rpclog frames trimmed.
func captureStack() []string {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(1, pcs)
	pcs = pcs[:n]
	if trimmed := trimStackPCs(pcs, skipInternalFrame); len(trimmed) > 0 {
		pcs = trimmed
	}
	return formatFrames(pcs)
}

// trimStackPCs removes leading frames that match skipFn while preserving the remainder.
func trimStackPCs(pcs []uintptr, skipFn func(string) bool) []uintptr {
	frames := runtime.CallersFrames(pcs)
	skip := 0
	for {
		frame, more := frames.Next()
		if !skipFn(frame.Function) {
			break
		}
		skip++
		if !more {
			return nil
		}
	}
	return pcs[skip:]
}

// skipInternalFrame reports whether a frame belongs to the runtime, to sync
// (emission runs inside sync.Once) or to this package and should not lead a
// reported stack.
func skipInternalFrame(funcName string) bool {
	return strings.HasPrefix(funcName, "runtime.") ||
		strings.HasPrefix(funcName, "sync.") ||
		strings.HasPrefix(funcName, "github.com/pjscruggs/rpclog.")
}

// formatFrames renders program counters as "function file:line" lines.
func formatFrames(pcs []uintptr) []string {
	if len(pcs) == 0 {
		return nil
	}
	lines := make([]string, 0, len(pcs))
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if frame.Function != "" && frame.Function != "runtime.goexit" {
			lines = append(lines, frame.Function+" "+frame.File+":"+strconv.Itoa(frame.Line))
		}
		if !more || len(lines) >= maxStackFrames {
			break
		}
	}
	return lines
}
