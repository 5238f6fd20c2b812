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
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pjscruggs/slogcp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/pjscruggs/rpclog"
)

const (
	transportGRPC    = "grpc"
	transportConnect = "connect"
)

type demoOptions struct {
	level     string
	transport string
	fail      string
	message   string
	timeout   time.Duration
}

// pinger is the client surface shared by both transports.
type pinger interface {
	RequestResponsePing(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	ClientStreamerPing(ctx context.Context, values ...string) (*wrapperspb.StringValue, error)
	ServerStreamerPing(ctx context.Context, in *wrapperspb.StringValue) ([]*wrapperspb.StringValue, error)
	BidiStreamerPing(ctx context.Context, values ...string) ([]*wrapperspb.StringValue, error)
}

func newRootCmd() *cobra.Command {
	o := &demoOptions{}
	cmd := &cobra.Command{
		Use:          "pingdemo",
		Short:        "Call every support.PingServer method and log each call once",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.level, "level", "info", "minimum log level (debug, info, warn, error)")
	flags.StringVar(&o.transport, "transport", transportGRPC, "RPC framework to use (grpc or connect)")
	flags.StringVar(&o.fail, "fail", "", "make the server fail every call with this status code (e.g. INVALID_ARGUMENT)")
	flags.StringVar(&o.message, "message", "Ping", "value sent in every ping")
	flags.DurationVar(&o.timeout, "timeout", 10*time.Second, "deadline for the whole run")
	return cmd
}

func run(ctx context.Context, o *demoOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(o.level)); err != nil {
		return fmt.Errorf("parse --level: %w", err)
	}
	failCode, err := parseCode(o.fail)
	if err != nil {
		return err
	}

	handler, err := slogcp.NewHandler(stdout, slogcp.WithLevel(level))
	if err != nil {
		return fmt.Errorf("create slogcp handler: %w", err)
	}
	defer func() { _ = handler.Close() }()

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTextMapPropagator(propagation.TraceContext{})

	opts := []rpclog.Option{
		rpclog.WithSink(rpclog.NewLogger(handler)),
		rpclog.WithTracerProvider(tp),
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var (
		client pinger
		stop   func()
	)
	switch strings.ToLower(o.transport) {
	case transportGRPC:
		client, stop, err = startGRPC(failCode, opts)
	case transportConnect:
		client, stop, err = startConnect(failCode, opts)
	default:
		return fmt.Errorf("unknown --transport %q", o.transport)
	}
	if err != nil {
		return err
	}
	defer stop()

	// Client interceptors run before otelgrpc starts the RPC span, so the
	// client records link to this span.
	ctx, span := tp.Tracer("pingdemo").Start(ctx, "pingdemo")
	defer span.End()

	callAll(ctx, client, o.message, stderr)
	return nil
}

func callAll(ctx context.Context, client pinger, message string, stderr io.Writer) {
	if out, err := client.RequestResponsePing(ctx, wrapperspb.String(message)); err != nil {
		fmt.Fprintf(stderr, "RequestResponsePing: %v\n", err)
	} else {
		fmt.Fprintf(stderr, "RequestResponsePing: %s\n", out.GetValue())
	}

	if out, err := client.ClientStreamerPing(ctx, message, message, message); err != nil {
		fmt.Fprintf(stderr, "ClientStreamerPing: %v\n", err)
	} else {
		fmt.Fprintf(stderr, "ClientStreamerPing: %s\n", out.GetValue())
	}

	outs, err := client.ServerStreamerPing(ctx, wrapperspb.String(message))
	fmt.Fprintf(stderr, "ServerStreamerPing: %s%s\n", joinValues(outs), errSuffix(err))

	outs, err = client.BidiStreamerPing(ctx, message, message)
	fmt.Fprintf(stderr, "BidiStreamerPing: %s%s\n", joinValues(outs), errSuffix(err))
}

func joinValues(msgs []*wrapperspb.StringValue) string {
	vals := make([]string, 0, len(msgs))
	for _, m := range msgs {
		vals = append(vals, m.GetValue())
	}
	return strings.Join(vals, ", ")
}

func errSuffix(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf(" (%v)", err)
}

// parseCode turns a status code name such as "INVALID_ARGUMENT" into a code.
// An empty name means the server succeeds.
func parseCode(name string) (codes.Code, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return codes.OK, nil
	}
	var code codes.Code
	if err := code.UnmarshalJSON([]byte(`"` + strings.ToUpper(name) + `"`)); err != nil {
		return codes.OK, fmt.Errorf("parse --fail: %w", err)
	}
	return code, nil
}
