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

// Package rpclogconnect emits rpclog call records for connectrpc.com/connect
// clients and handlers.
//
//	interceptor := rpclogconnect.NewInterceptor(rpclog.WithSink(sink))
//	path, handler := pingv1connect.NewPingServiceHandler(
//		svc, connect.WithInterceptors(interceptor),
//	)
//
// Records use the same keys as the gRPC interceptors. Connect error codes are
// reported as their gRPC equivalents, and rpclog.WithSkipMethods matches
// connect procedures.
package rpclogconnect

import (
	"context"
	"errors"
	"io"

	"connectrpc.com/connect"
	"google.golang.org/grpc/codes"

	"github.com/pjscruggs/rpclog"
)

// Interceptor is a connect.Interceptor backed by an rpclog.Interceptor.
type Interceptor struct {
	core *rpclog.Interceptor
}

var _ connect.Interceptor = (*Interceptor)(nil)

// NewInterceptor returns an Interceptor configured by opts. The connect error
// code extractor is always installed ahead of any CodeFunc in opts.
func NewInterceptor(opts ...rpclog.Option) *Interceptor {
	all := make([]rpclog.Option, 0, len(opts)+1)
	all = append(all, rpclog.WithCodeFunc(connectCode))
	all = append(all, opts...)
	return &Interceptor{core: rpclog.New(all...)}
}

// WrapUnary records unary calls on both clients and handlers.
func (i *Interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if i.core.Skips(req.Spec().Procedure) {
			return next(ctx, req)
		}
		var res connect.AnyResponse
		_, err := i.core.Intercept(ctx, callFor(req.Spec(), req.Any()), func(ctx context.Context) (any, error) {
			var err error
			res, err = next(ctx, req)
			if err != nil || res == nil {
				return nil, err
			}
			return res.Any(), nil
		})
		return res, err
	}
}

// WrapStreamingClient records client-side streaming calls. The record is
// emitted when the response side ends, on the first transport error, or
// when ctx is cancelled, whichever comes first.
func (i *Interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		if i.core.Skips(spec.Procedure) {
			return conn
		}
		entry := i.core.Begin(ctx, callFor(spec, nil))
		if entry == nil {
			return conn
		}
		c := &clientConn{StreamingClientConn: conn, entry: entry}
		c.stop = context.AfterFunc(ctx, func() {
			entry.Finish(ctx.Err())
		})
		return c
	}
}

// WrapStreamingHandler records handler-side streaming calls.
func (i *Interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if i.core.Skips(conn.Spec().Procedure) {
			return next(ctx, conn)
		}
		entry := i.core.Begin(ctx, callFor(conn.Spec(), nil))
		if entry == nil {
			return next(ctx, conn)
		}
		_, err := entry.Run(func() (any, error) {
			return nil, next(ctx, &handlerConn{StreamingHandlerConn: conn, entry: entry})
		})
		return err
	}
}

type clientConn struct {
	connect.StreamingClientConn
	entry *rpclog.Entry
	stop  func() bool
}

func (c *clientConn) Send(msg any) error {
	err := c.StreamingClientConn.Send(msg)
	switch {
	case err == nil:
		c.entry.SetRequest(msg)
	case !errors.Is(err, io.EOF):
		c.finish(err)
	}
	return err
}

func (c *clientConn) Receive(msg any) error {
	err := c.StreamingClientConn.Receive(msg)
	switch {
	case err == nil:
		c.entry.SetResponse(msg)
	case errors.Is(err, io.EOF):
		c.finish(nil)
	default:
		c.finish(err)
	}
	return err
}

// CloseResponse ends the call; a record not yet emitted is emitted as OK.
func (c *clientConn) CloseResponse() error {
	err := c.StreamingClientConn.CloseResponse()
	c.finish(nil)
	return err
}

func (c *clientConn) finish(err error) {
	c.stop()
	c.entry.Finish(err)
}

type handlerConn struct {
	connect.StreamingHandlerConn
	entry *rpclog.Entry
}

func (c *handlerConn) Receive(msg any) error {
	err := c.StreamingHandlerConn.Receive(msg)
	if err == nil {
		c.entry.SetRequest(msg)
	}
	return err
}

func (c *handlerConn) Send(msg any) error {
	err := c.StreamingHandlerConn.Send(msg)
	if err == nil {
		c.entry.SetResponse(msg)
	}
	return err
}

// connectCode reports the gRPC code of a *connect.Error. Connect codes share
// gRPC's numbering.
func connectCode(err error) (codes.Code, bool) {
	var ce *connect.Error
	if !errors.As(err, &ce) {
		return codes.Unknown, false
	}
	return codes.Code(ce.Code()), true
}

func callFor(spec connect.Spec, req any) rpclog.Call {
	return rpclog.Call{
		FullMethod: spec.Procedure,
		Type:       methodType(spec.StreamType),
		Component:  component(spec.IsClient),
		Request:    req,
	}
}

func methodType(st connect.StreamType) rpclog.MethodType {
	switch st {
	case connect.StreamTypeClient:
		return rpclog.MethodClientStream
	case connect.StreamTypeServer:
		return rpclog.MethodServerStream
	case connect.StreamTypeBidi:
		return rpclog.MethodBidiStream
	default:
		return rpclog.MethodUnary
	}
}

func component(isClient bool) rpclog.Component {
	if isClient {
		return rpclog.ComponentClient
	}
	return rpclog.ComponentServer
}
