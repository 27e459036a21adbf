package geyser

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

var subscribeStreamDesc = grpc.StreamDesc{
	StreamName:    "Subscribe",
	ServerStreams: true,
	ClientStreams: true,
}

// Stream is an open Geyser.Subscribe call.
type Stream struct {
	cs grpc.ClientStream
}

// Subscribe opens the Subscribe stream on conn and sends req.
func Subscribe(ctx context.Context, conn grpc.ClientConnInterface, req proto.Message, opts ...grpc.CallOption) (*Stream, error) {
	cs, err := conn.NewStream(ctx, &subscribeStreamDesc, SubscribeMethod, opts...)
	if err != nil {
		return nil, fmt.Errorf("open subscribe stream: %w", err)
	}

	if err := cs.SendMsg(req); err != nil {
		return nil, fmt.Errorf("send subscribe request: %w", err)
	}

	return &Stream{cs: cs}, nil
}

// Recv blocks for the next update.
func (s *Stream) Recv() (Update, error) {
	m := NewSubscribeUpdate()
	if err := s.cs.RecvMsg(m); err != nil {
		return Update{}, err
	}
	return ParseUpdate(m)
}

// Send writes another request on the stream, e.g. a ping.
func (s *Stream) Send(req proto.Message) error {
	return s.cs.SendMsg(req)
}

// CloseSend half-closes the stream.
func (s *Stream) CloseSend() error {
	return s.cs.CloseSend()
}
