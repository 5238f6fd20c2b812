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

package pingtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ConnectHandler serves support.PingServer with connect. Mount the returned
// handler at "/" or under the service path.
func ConnectHandler(srv *Server, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(RequestResponseMethod, connect.NewUnaryHandler(
		RequestResponseMethod,
		func(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
			out, err := srv.RequestResponsePing(ctx, req.Msg)
			if err != nil {
				return nil, err
			}
			return connect.NewResponse(out), nil
		},
		opts...,
	))
	mux.Handle(ClientStreamerMethod, connect.NewClientStreamHandler(
		ClientStreamerMethod,
		func(_ context.Context, stream *connect.ClientStream[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
			if err := srv.fail(); err != nil {
				return nil, err
			}
			n := 0
			for stream.Receive() {
				n++
			}
			if err := stream.Err(); err != nil {
				return nil, err
			}
			return connect.NewResponse(wrapperspb.String(fmt.Sprintf("Pong x%d", n))), nil
		},
		opts...,
	))
	mux.Handle(ServerStreamerMethod, connect.NewServerStreamHandler(
		ServerStreamerMethod,
		func(_ context.Context, _ *connect.Request[wrapperspb.StringValue], stream *connect.ServerStream[wrapperspb.StringValue]) error {
			if err := srv.fail(); err != nil {
				return err
			}
			for i := 1; i <= ServerStreamReplies; i++ {
				if err := stream.Send(wrapperspb.String(fmt.Sprintf("Pong #%d", i))); err != nil {
					return err
				}
			}
			return nil
		},
		opts...,
	))
	mux.Handle(BidiStreamerMethod, connect.NewBidiStreamHandler(
		BidiStreamerMethod,
		func(_ context.Context, stream *connect.BidiStream[wrapperspb.StringValue, wrapperspb.StringValue]) error {
			if err := srv.fail(); err != nil {
				return err
			}
			for {
				if _, err := stream.Receive(); err != nil {
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}
				if err := stream.Send(wrapperspb.String(Pong)); err != nil {
					return err
				}
			}
		},
		opts...,
	))
	return "/" + ServiceName + "/", mux
}

// ConnectClient calls support.PingServer with connect.
type ConnectClient struct {
	requestResponse *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
	clientStreamer  *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
	serverStreamer  *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
	bidiStreamer    *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
}

// NewConnectClient returns a ConnectClient for the server at baseURL.
func NewConnectClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ConnectClient {
	return &ConnectClient{
		requestResponse: connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, baseURL+RequestResponseMethod, opts...),
		clientStreamer:  connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, baseURL+ClientStreamerMethod, opts...),
		serverStreamer:  connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, baseURL+ServerStreamerMethod, opts...),
		bidiStreamer:    connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, baseURL+BidiStreamerMethod, opts...),
	}
}

// RequestResponsePing sends one ping and returns the reply.
func (c *ConnectClient) RequestResponsePing(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	res, err := c.requestResponse.CallUnary(ctx, connect.NewRequest(in))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// ClientStreamerPing streams values and returns the single reply.
func (c *ConnectClient) ClientStreamerPing(ctx context.Context, values ...string) (*wrapperspb.StringValue, error) {
	stream := c.clientStreamer.CallClientStream(ctx)
	for _, v := range values {
		if err := stream.Send(wrapperspb.String(v)); err != nil {
			break
		}
	}
	res, err := stream.CloseAndReceive()
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// ServerStreamerPing sends one ping and collects every reply.
func (c *ConnectClient) ServerStreamerPing(ctx context.Context, in *wrapperspb.StringValue) ([]*wrapperspb.StringValue, error) {
	stream, err := c.serverStreamer.CallServerStream(ctx, connect.NewRequest(in))
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	var out []*wrapperspb.StringValue
	for stream.Receive() {
		out = append(out, stream.Msg())
	}
	return out, stream.Err()
}

// BidiStreamerPing sends every value, closes the request side and collects every reply.
func (c *ConnectClient) BidiStreamerPing(ctx context.Context, values ...string) ([]*wrapperspb.StringValue, error) {
	stream := c.bidiStreamer.CallBidiStream(ctx)
	for _, v := range values {
		if err := stream.Send(wrapperspb.String(v)); err != nil {
			break
		}
	}
	if err := stream.CloseRequest(); err != nil {
		return nil, err
	}
	var out []*wrapperspb.StringValue
	for {
		m, err := stream.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			_ = stream.CloseResponse()
			return out, err
		}
		out = append(out, m)
	}
	return out, stream.CloseResponse()
}
