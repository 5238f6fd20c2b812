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

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// UnaryServerInterceptor returns a grpc.UnaryServerInterceptor that emits one
// record per unary call.
//
// Example:
//
//	handler, _ := slogcp.NewHandler(os.Stdout)
//	server := grpc.NewServer(
//		grpc.ChainUnaryInterceptor(rpclog.UnaryServerInterceptor(
//			rpclog.WithSink(rpclog.NewLogger(handler)),
//		)),
//	)
func UnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	in := New(opts...)
	if m := in.cfg.matcher(); m != nil {
		return selector.UnaryServerInterceptor(in.unaryServer, m)
	}
	return in.unaryServer
}

// StreamServerInterceptor returns a grpc.StreamServerInterceptor that emits one
// record per streaming call.
func StreamServerInterceptor(opts ...Option) grpc.StreamServerInterceptor {
	in := New(opts...)
	if m := in.cfg.matcher(); m != nil {
		return selector.StreamServerInterceptor(in.streamServer, m)
	}
	return in.streamServer
}

// UnaryClientInterceptor returns a grpc.UnaryClientInterceptor that emits one
// record per outgoing unary call.
func UnaryClientInterceptor(opts ...Option) grpc.UnaryClientInterceptor {
	in := New(opts...)
	if m := in.cfg.matcher(); m != nil {
		return selector.UnaryClientInterceptor(in.unaryClient, m)
	}
	return in.unaryClient
}

// StreamClientInterceptor returns a grpc.StreamClientInterceptor that emits one
// record per outgoing streaming call.
func StreamClientInterceptor(opts ...Option) grpc.StreamClientInterceptor {
	in := New(opts...)
	if m := in.cfg.matcher(); m != nil {
		return selector.StreamClientInterceptor(in.streamClient, m)
	}
	return in.streamClient
}

// ServerOptions returns grpc.ServerOptions that install an otelgrpc
// StatsHandler (unless disabled with WithOTel) and the logging interceptors.
// The stats handler runs first, so server records carry the RPC's span IDs.
func ServerOptions(opts ...Option) []grpc.ServerOption {
	cfg := applyOptions(opts)
	var serverOpts []grpc.ServerOption

	if cfg.enableOTel {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler(statsHandlerOptions(cfg)...)))
	}

	serverOpts = append(serverOpts,
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(opts...)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(opts...)),
	)
	return serverOpts
}

// DialOptions returns grpc.DialOptions that install an otelgrpc StatsHandler
// (unless disabled with WithOTel) and the logging interceptors.
func DialOptions(opts ...Option) []grpc.DialOption {
	cfg := applyOptions(opts)
	var dialOpts []grpc.DialOption

	if cfg.enableOTel {
		dialOpts = append(dialOpts, grpc.WithStatsHandler(otelgrpc.NewClientHandler(statsHandlerOptions(cfg)...)))
	}

	dialOpts = append(dialOpts,
		grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(opts...)),
		grpc.WithChainStreamInterceptor(StreamClientInterceptor(opts...)),
	)
	return dialOpts
}

// statsHandlerOptions configures otelgrpc instrumentation based on the provided configuration.
func statsHandlerOptions(cfg *config) []otelgrpc.Option {
	var opts []otelgrpc.Option
	if cfg.tracerProvider != nil {
		opts = append(opts, otelgrpc.WithTracerProvider(cfg.tracerProvider))
	}
	if cfg.propagators != nil {
		opts = append(opts, otelgrpc.WithPropagators(cfg.propagators))
	}
	return opts
}

func (in *Interceptor) unaryServer(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	call := Call{
		FullMethod: info.FullMethod,
		Type:       MethodUnary,
		Component:  ComponentServer,
		Request:    req,
	}
	return in.Intercept(ctx, call, func(ctx context.Context) (any, error) {
		return handler(ctx, req)
	})
}

func (in *Interceptor) unaryClient(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
	call := Call{
		FullMethod: method,
		Type:       MethodUnary,
		Component:  ComponentClient,
		Request:    req,
	}
	_, err := in.Intercept(ctx, call, func(ctx context.Context) (any, error) {
		if err := invoker(ctx, method, req, reply, cc, callOpts...); err != nil {
			return nil, err
		}
		return reply, nil
	})
	return err
}

func (in *Interceptor) streamServer(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	call := Call{
		FullMethod: info.FullMethod,
		Type:       serverStreamType(info),
		Component:  ComponentServer,
	}
	entry := in.Begin(ss.Context(), call)
	if entry == nil {
		return handler(srv, ss)
	}
	_, err := entry.Run(func() (any, error) {
		return nil, handler(srv, &serverStream{ServerStream: ss, entry: entry})
	})
	return err
}

func (in *Interceptor) streamClient(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
	call := Call{
		FullMethod: method,
		Type:       clientStreamType(desc),
		Component:  ComponentClient,
	}
	entry := in.Begin(ctx, call)
	if entry == nil {
		return streamer(ctx, desc, cc, method, callOpts...)
	}

	cs, err := openClientStream(entry, func() (grpc.ClientStream, error) {
		return streamer(ctx, desc, cc, method, callOpts...)
	})
	if err != nil {
		entry.Finish(err)
		return nil, err
	}
	return newClientStream(ctx, cs, desc, entry), nil
}

// openClientStream calls open, recording a panic before re-raising it.
func openClientStream(entry *Entry, open func() (grpc.ClientStream, error)) (grpc.ClientStream, error) {
	defer entry.finishOnPanic()
	return open()
}

// serverStreamType converts gRPC stream information into a MethodType.
func serverStreamType(info *grpc.StreamServerInfo) MethodType {
	switch {
	case info.IsClientStream && info.IsServerStream:
		return MethodBidiStream
	case info.IsClientStream:
		return MethodClientStream
	case info.IsServerStream:
		return MethodServerStream
	default:
		return MethodUnary
	}
}

// clientStreamType converts a StreamDesc into a MethodType.
func clientStreamType(desc *grpc.StreamDesc) MethodType {
	switch {
	case desc.ClientStreams && desc.ServerStreams:
		return MethodBidiStream
	case desc.ClientStreams:
		return MethodClientStream
	case desc.ServerStreams:
		return MethodServerStream
	default:
		return MethodUnary
	}
}
