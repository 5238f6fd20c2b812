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
	"io"

	"google.golang.org/grpc"
)

type serverStream struct {
	grpc.ServerStream
	entry *Entry
}

// RecvMsg records the latest inbound message.
func (s *serverStream) RecvMsg(m any) error {
	err := s.ServerStream.RecvMsg(m)
	if err == nil {
		s.entry.SetRequest(m)
	}
	return err
}

// SendMsg records the latest outbound message.
func (s *serverStream) SendMsg(m any) error {
	err := s.ServerStream.SendMsg(m)
	if err == nil {
		s.entry.SetResponse(m)
	}
	return err
}

type clientStream struct {
	grpc.ClientStream
	entry         *Entry
	serverStreams bool
	stop          func() bool
}

// newClientStream wraps cs so the entry is finished when the stream ends or
// when ctx is cancelled first.
func newClientStream(ctx context.Context, cs grpc.ClientStream, desc *grpc.StreamDesc, entry *Entry) *clientStream {
	s := &clientStream{
		ClientStream:  cs,
		entry:         entry,
		serverStreams: desc.ServerStreams,
	}
	s.stop = context.AfterFunc(ctx, func() {
		entry.Finish(ctx.Err())
	})
	return s
}

// SendMsg records the latest outbound message and finishes on a send error.
// io.EOF only signals that the stream ended; its status comes from RecvMsg.
func (s *clientStream) SendMsg(m any) error {
	err := s.ClientStream.SendMsg(m)
	switch {
	case err == nil:
		s.entry.SetRequest(m)
	case !errors.Is(err, io.EOF):
		s.finish(err)
	}
	return err
}

// RecvMsg records the latest inbound message and finishes when the stream ends.
func (s *clientStream) RecvMsg(m any) error {
	err := s.ClientStream.RecvMsg(m)
	if err == nil {
		s.entry.SetResponse(m)
		// Without server streaming the single response completes the call.
		if !s.serverStreams {
			s.finish(nil)
		}
		return nil
	}
	if errors.Is(err, io.EOF) {
		s.finish(nil)
	} else {
		s.finish(err)
	}
	return err
}

// CloseSend finishes the entry if closing the send direction fails.
func (s *clientStream) CloseSend() error {
	err := s.ClientStream.CloseSend()
	if err != nil {
		s.finish(err)
	}
	return err
}

// finish emits the record with err and releases the cancellation hook.
func (s *clientStream) finish(err error) {
	s.stop()
	s.entry.Finish(err)
}
