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
	"bytes"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// ToPlain converts a message into plain Go values suitable for structured
// logging. Protobuf messages become map[string]any keyed by proto field name,
// repeated fields become []any, map fields become map[string]any and enums
// become their value names. Fields with explicit presence that are unset are
// omitted. Values that are not protobuf messages are returned unchanged, and a
// nil message yields nil.
func ToPlain(m any) any {
	if m == nil {
		return nil
	}
	pm, ok := m.(proto.Message)
	if !ok {
		return m
	}
	msg := pm.ProtoReflect()
	if !msg.IsValid() {
		return nil
	}
	return messageToMap(msg)
}

// messageToMap walks every field of msg.
func messageToMap(msg protoreflect.Message) map[string]any {
	fields := msg.Descriptor().Fields()
	out := make(map[string]any, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.HasPresence() && !msg.Has(fd) {
			continue
		}
		out[string(fd.Name())] = fieldValue(fd, msg.Get(fd))
	}
	return out
}

// fieldValue converts a field value, descending into lists and maps.
func fieldValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch {
	case fd.IsList():
		list := v.List()
		out := make([]any, list.Len())
		for i := 0; i < list.Len(); i++ {
			out[i] = singularValue(fd, list.Get(i))
		}
		return out
	case fd.IsMap():
		m := v.Map()
		out := make(map[string]any, m.Len())
		valueFD := fd.MapValue()
		m.Range(func(k protoreflect.MapKey, mv protoreflect.Value) bool {
			out[k.String()] = singularValue(valueFD, mv)
			return true
		})
		return out
	default:
		return singularValue(fd, v)
	}
}

// singularValue converts one non-repeated value.
func singularValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return messageToMap(v.Message())
	case protoreflect.BytesKind:
		return bytes.Clone(v.Bytes())
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int32(v.Enum())
	default:
		return v.Interface()
	}
}
