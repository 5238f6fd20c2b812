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

// Package pingtest provides the support.PingServer service used by tests and
// the demo. It has one method per call shape and uses
// google.protobuf.StringValue for every message, so no generated code is needed.
package pingtest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Service and method names.
const (
	ServiceName = "support.PingServer"

	RequestResponseMethod = "/support.PingServer/RequestResponsePing"
	ClientStreamerMethod  = "/support.PingServer/ClientStreamerPing"
	ServerStreamerMethod  = "/support.PingServer/ServerStreamerPing"
	BidiStreamerMethod    = "/support.PingServer/BidiStreamerPing"
)

// Pong is the reply to a single ping.
const Pong = "Pong!"

// PingServer is the server API of support.PingServer.
type PingServer interface {
	RequestResponsePing(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	ClientStreamerPing(grpc.ServerStream) error
	ServerStreamerPing(*wrapperspb.StringValue, grpc.ServerStream) error
	BidiStreamerPing(grpc.ServerStream) error
}

// Server implements PingServer. When Err is set every method fails with it;
// when Panic is set every method panics with it.
type Server struct {
	Err   error
	Panic any
}

// ServerStreamReplies is the number of messages ServerStreamerPing sends.
const ServerStreamReplies = 2

var _ PingServer = (*Server)(nil)

func (s *Server) fail() error {
	if s.Panic != nil {
		panic(s.Panic)
	}
	return s.Err
}

// RequestResponsePing answers a single ping.
func (s *Server) RequestResponsePing(_ context.Context, _ *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	return wrapperspb.String(Pong), nil
}

// ClientStreamerPing reads every ping and answers once with their count.
func (s *Server) ClientStreamerPing(stream grpc.ServerStream) error {
	if err := s.fail(); err != nil {
		return err
	}
	n := 0
	for {
		in := new(wrapperspb.StringValue)
		err := stream.RecvMsg(in)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		n++
	}
	return stream.SendMsg(wrapperspb.String(fmt.Sprintf("Pong x%d", n)))
}

// ServerStreamerPing answers one ping with ServerStreamReplies pongs.
func (s *Server) ServerStreamerPing(_ *wrapperspb.StringValue, stream grpc.ServerStream) error {
	if err := s.fail(); err != nil {
		return err
	}
	for i := 1; i <= ServerStreamReplies; i++ {
		if err := stream.SendMsg(wrapperspb.String(fmt.Sprintf("Pong #%d", i))); err != nil {
			return err
		}
	}
	return nil
}

// BidiStreamerPing answers every ping as it arrives.
func (s *Server) BidiStreamerPing(stream grpc.ServerStream) error {
	if err := s.fail(); err != nil {
		return err
	}
	for {
		in := new(wrapperspb.StringValue)
		err := stream.RecvMsg(in)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := stream.SendMsg(wrapperspb.String(Pong)); err != nil {
			return err
		}
	}
}

// ServiceDesc describes support.PingServer for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PingServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RequestResponsePing",
			Handler:    requestResponseHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ClientStreamerPing",
			Handler:       clientStreamerHandler,
			ClientStreams: true,
		},
		{
			StreamName:    "ServerStreamerPing",
			Handler:       serverStreamerHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "BidiStreamerPing",
			Handler:       bidiStreamerHandler,
			ClientStreams: true,
			ServerStreams: true,
		},
	},
	Metadata: "support/ping.proto",
}

// Register adds srv to s.
func Register(s grpc.ServiceRegistrar, srv PingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func requestResponseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PingServer).RequestResponsePing(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RequestResponseMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PingServer).RequestResponsePing(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func clientStreamerHandler(srv any, stream grpc.ServerStream) error {
	return srv.(PingServer).ClientStreamerPing(stream)
}

func serverStreamerHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PingServer).ServerStreamerPing(in, stream)
}

func bidiStreamerHandler(srv any, stream grpc.ServerStream) error {
	return srv.(PingServer).BidiStreamerPing(stream)
}
