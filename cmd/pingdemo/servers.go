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

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/pjscruggs/rpclog"
	"github.com/pjscruggs/rpclog/internal/pingtest"
	"github.com/pjscruggs/rpclog/rpclogconnect"
)

// startGRPC serves support.PingServer with grpc-go and returns a client.
func startGRPC(failCode codes.Code, opts []rpclog.Option) (pinger, func(), error) {
	srv := &pingtest.Server{}
	if failCode != codes.OK {
		srv.Err = status.Error(failCode, "ping rejected")
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, fmt.Errorf("listen: %w", err)
	}
	server := grpc.NewServer(rpclog.ServerOptions(opts...)...)
	pingtest.Register(server, srv)
	go func() {
		_ = server.Serve(lis)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(), append(
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		rpclog.DialOptions(opts...)...,
	)...)
	if err != nil {
		server.Stop()
		return nil, nil, fmt.Errorf("dial: %w", err)
	}

	stop := func() {
		_ = conn.Close()
		server.GracefulStop()
	}
	return pingtest.NewClient(conn), stop, nil
}

// startConnect serves support.PingServer with connect over h2c, next to the
// standard health and reflection handlers, and returns a gRPC-protocol client.
func startConnect(failCode codes.Code, opts []rpclog.Option) (pinger, func(), error) {
	srv := &pingtest.Server{}
	if failCode != codes.OK {
		srv.Err = connect.NewError(connect.Code(failCode), errors.New("ping rejected"))
	}

	interceptor := rpclogconnect.NewInterceptor(opts...)
	path, handler := pingtest.ConnectHandler(srv, connect.WithInterceptors(interceptor))

	checker := grpchealth.NewStaticChecker(pingtest.ServiceName)
	reflector := grpcreflect.NewStaticReflector(pingtest.ServiceName)

	mux := http.NewServeMux()
	mux.Handle(grpcreflect.NewHandlerV1(reflector))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector))
	mux.Handle(grpchealth.NewHandler(checker))
	mux.Handle(path, handler)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, fmt.Errorf("listen: %w", err)
	}
	server := &http.Server{
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "serve error:", err)
		}
	}()

	httpClient := &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
	client := pingtest.NewConnectClient(
		httpClient,
		"http://"+lis.Addr().String(),
		connect.WithGRPC(),
		connect.WithInterceptors(interceptor),
	)

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
	return client, stop, nil
}
