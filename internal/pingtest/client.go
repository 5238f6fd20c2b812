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
	"io"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const bufSize = 1 << 20

// Client calls support.PingServer over a gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// RequestResponsePing sends one ping and returns the reply.
func (c *Client) RequestResponsePing(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, RequestResponseMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ClientStreamerPing streams values and returns the single reply.
func (c *Client) ClientStreamerPing(ctx context.Context, values ...string) (*wrapperspb.StringValue, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], ClientStreamerMethod)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if err := stream.SendMsg(wrapperspb.String(v)); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	out := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ServerStreamerPing sends one ping and collects every reply.
func (c *Client) ServerStreamerPing(ctx context.Context, in *wrapperspb.StringValue) ([]*wrapperspb.StringValue, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], ServerStreamerMethod)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return recvAll(stream)
}

// BidiStreamerPing sends every value, closes the send side and collects every reply.
func (c *Client) BidiStreamerPing(ctx context.Context, values ...string) ([]*wrapperspb.StringValue, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[2], BidiStreamerMethod)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if err := stream.SendMsg(wrapperspb.String(v)); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return recvAll(stream)
}

func recvAll(stream grpc.ClientStream) ([]*wrapperspb.StringValue, error) {
	var out []*wrapperspb.StringValue
	for {
		m := new(wrapperspb.StringValue)
		err := stream.RecvMsg(m)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
}

// Start serves srv on an in-memory listener and returns a connected client
// connection. Both are torn down when the test ends.
func Start(tb testing.TB, srv PingServer, serverOpts []grpc.ServerOption, dialOpts []grpc.DialOption) *grpc.ClientConn {
	tb.Helper()

	lis := bufconn.Listen(bufSize)
	server := grpc.NewServer(serverOpts...)
	Register(server, srv)
	go func() {
		_ = server.Serve(lis)
	}()

	opts := append([]grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, dialOpts...)
	conn, err := grpc.NewClient("passthrough:///bufnet", opts...)
	if err != nil {
		server.Stop()
		tb.Fatalf("create bufconn client: %v", err)
	}

	tb.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})
	return conn
}
