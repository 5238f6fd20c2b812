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
	"testing"

	"github.com/google/go-cmp/cmp"
	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/protobuf/types/known/apipb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/typepb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/pjscruggs/rpclog/internal/pingtest"
)

// TestToPlain checks protobuf messages become plain maps keyed by field name.
func TestToPlain(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"nil-message", (*wrapperspb.StringValue)(nil), nil},
		{"non-proto", "Ping", "Ping"},
		{"string-value", wrapperspb.String("Ping"), map[string]any{"value": "Ping"}},
		{"zero-scalar", wrapperspb.String(""), map[string]any{"value": ""}},
		{"int-value", wrapperspb.Int64(7), map[string]any{"value": int64(7)}},
		{"bytes-value", wrapperspb.Bytes([]byte("Ping")), map[string]any{"value": []byte("Ping")}},
		{"duration", durationpb.New(1500000000), map[string]any{"seconds": int64(1), "nanos": int32(500000000)}},
		{"repeated", &fieldmaskpb.FieldMask{Paths: []string{"a", "b.c"}}, map[string]any{"paths": []any{"a", "b.c"}}},
		{"empty-repeated", &fieldmaskpb.FieldMask{}, map[string]any{"paths": []any{}}},
		{"oneof-enum", structpb.NewNullValue(), map[string]any{"null_value": "NULL_VALUE"}},
		{
			"map-of-messages",
			&structpb.Struct{Fields: map[string]*structpb.Value{
				"name":  structpb.NewStringValue("ping"),
				"count": structpb.NewNumberValue(2),
				"tags": structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
					structpb.NewBoolValue(true),
				}}),
			}},
			map[string]any{"fields": map[string]any{
				"name":  map[string]any{"string_value": "ping"},
				"count": map[string]any{"number_value": float64(2)},
				"tags": map[string]any{"list_value": map[string]any{"values": []any{
					map[string]any{"bool_value": true},
				}}},
			}},
		},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ToPlain(tt.in)); diff != "" {
			t.Fatalf("%s: unexpected conversion (-want +got):\n%s", tt.name, diff)
		}
	}
}

// TestToPlainNestedMessages spot-checks nested messages, enums and unset message fields.
func TestToPlainNestedMessages(t *testing.T) {
	api := &apipb.Api{
		Name: "support.PingServer",
		Methods: []*apipb.Method{{
			Name:              "ServerStreamerPing",
			RequestTypeUrl:    "type.googleapis.com/google.protobuf.StringValue",
			ResponseStreaming: true,
		}},
		Syntax: typepb.Syntax_SYNTAX_PROTO3,
	}

	got, ok := ToPlain(api).(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", ToPlain(api))
	}
	if got["name"] != "support.PingServer" {
		t.Fatalf("unexpected name: %v", got["name"])
	}
	if got["syntax"] != "SYNTAX_PROTO3" {
		t.Fatalf("expected enum value name, got %v", got["syntax"])
	}
	if _, ok := got["source_context"]; ok {
		t.Fatalf("expected unset message field to be omitted")
	}
	methods, ok := got["methods"].([]any)
	if !ok || len(methods) != 1 {
		t.Fatalf("expected one method, got %v", got["methods"])
	}
	method := methods[0].(map[string]any)
	if method["name"] != "ServerStreamerPing" || method["response_streaming"] != true || method["request_streaming"] != false {
		t.Fatalf("unexpected method: %v", method)
	}
	if method["syntax"] != "SYNTAX_PROTO2" {
		t.Fatalf("expected zero enum value name, got %v", method["syntax"])
	}
}

// TestSetRequestCopiesBytes checks a reused bytes buffer cannot rewrite a captured body.
func TestSetRequestCopiesBytes(t *testing.T) {
	rec := pingtest.NewRecorder(grpc_logging.LevelDebug)
	entry := New(WithSink(rec)).Begin(context.Background(), Call{
		FullMethod: "/support.PingServer/ClientStreamerPing",
		Type:       MethodClientStream,
		Component:  ComponentServer,
	})

	buf := []byte("first")
	entry.SetRequest(wrapperspb.Bytes(buf))
	copy(buf, "XXXXX")
	entry.Finish(nil)

	e := rec.Wait(t, 1)[0]
	if diff := cmp.Diff(map[string]any{"value": []byte("first")}, e.Fields[RequestKey]); diff != "" {
		t.Fatalf("unexpected request (-want +got):\n%s", diff)
	}
}
