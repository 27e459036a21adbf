// Package geysertest provides the server half of the geyser Subscribe stream
// for tests: a handler registration plus builders for the updates a node
// would send.
package geysertest

import (
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"solperf/internal/pkg/geyser"
)

var (
	messages             = geyser.File().Messages()
	subscribeRequestDesc = messages.ByName("SubscribeRequest")
	requestPingDesc      = messages.ByName("SubscribeRequestPing")
	subscribeUpdateDesc  = messages.ByName("SubscribeUpdate")
	updateSlotDesc       = messages.ByName("SubscribeUpdateSlot")
	updatePingDesc       = messages.ByName("SubscribeUpdatePing")
	updatePongDesc       = messages.ByName("SubscribeUpdatePong")
)

// ServerStream is the server side of a Subscribe call.
type ServerStream struct {
	grpc.ServerStream
}

// Recv decodes the next client request.
func (s ServerStream) Recv() (*dynamicpb.Message, error) {
	m := NewSubscribeRequest()
	if err := s.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Send writes an update to the client.
func (s ServerStream) Send(u *dynamicpb.Message) error {
	return s.SendMsg(u)
}

// SubscribeHandler serves one Subscribe call.
type SubscribeHandler func(stream ServerStream) error

// RegisterSubscribeHandler registers h as geyser.Geyser/Subscribe on s.
func RegisterSubscribeHandler(s grpc.ServiceRegistrar, h SubscribeHandler) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: geyser.ServiceName,
		HandlerType: (*interface{})(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    "Subscribe",
			ServerStreams: true,
			ClientStreams: true,
			Handler: func(_ interface{}, stream grpc.ServerStream) error {
				return h(ServerStream{stream})
			},
		}},
		Metadata: "geyser.proto",
	}, struct{}{})
}

// NewServer serves h on a loopback TCP listener until the test ends and
// returns the listen address.
func NewServer(t testing.TB, h SubscribeHandler) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("geysertest: listen: %v", err)
	}

	srv := grpc.NewServer()
	RegisterSubscribeHandler(srv, h)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

// NewSubscribeRequest returns an empty SubscribeRequest to decode into.
func NewSubscribeRequest() *dynamicpb.Message {
	return dynamicpb.NewMessage(subscribeRequestDesc)
}

// RequestInfo is the part of a SubscribeRequest a test server looks at.
type RequestInfo struct {
	SlotFilters []string
	Commitment  geyser.Commitment
	HasPing     bool
	PingID      int32
}

// InspectRequest reads a SubscribeRequest.
func InspectRequest(req proto.Message) RequestInfo {
	var (
		info   RequestInfo
		m      = req.ProtoReflect()
		fields = subscribeRequestDesc.Fields()
	)

	m.Get(fields.ByName("slots")).Map().Range(func(k protoreflect.MapKey, _ protoreflect.Value) bool {
		info.SlotFilters = append(info.SlotFilters, k.String())
		return true
	})
	info.Commitment = geyser.Commitment(m.Get(fields.ByName("commitment")).Enum())

	if pf := fields.ByName("ping"); m.Has(pf) {
		info.HasPing = true
		info.PingID = int32(m.Get(pf).Message().Get(requestPingDesc.Fields().ByName("id")).Int())
	}
	return info
}

// NewSlotUpdate builds a SubscribeUpdate carrying a slot.
func NewSlotUpdate(slot, parent uint64, status geyser.Commitment) *dynamicpb.Message {
	fields := updateSlotDesc.Fields()
	s := dynamicpb.NewMessage(updateSlotDesc)
	s.Set(fields.ByName("slot"), protoreflect.ValueOfUint64(slot))
	s.Set(fields.ByName("parent"), protoreflect.ValueOfUint64(parent))
	s.Set(fields.ByName("status"), protoreflect.ValueOfEnum(protoreflect.EnumNumber(status)))

	u := geyser.NewSubscribeUpdate()
	u.Set(subscribeUpdateDesc.Fields().ByName("filters"), filtersValue(u, "client"))
	u.Set(subscribeUpdateDesc.Fields().ByName("slot"), protoreflect.ValueOfMessage(s))
	return u
}

// NewPingUpdate builds a server ping.
func NewPingUpdate() *dynamicpb.Message {
	u := geyser.NewSubscribeUpdate()
	u.Set(subscribeUpdateDesc.Fields().ByName("ping"), protoreflect.ValueOfMessage(dynamicpb.NewMessage(updatePingDesc)))
	return u
}

// NewPongUpdate builds a server pong answering a client ping.
func NewPongUpdate(id int32) *dynamicpb.Message {
	p := dynamicpb.NewMessage(updatePongDesc)
	p.Set(updatePongDesc.Fields().ByName("id"), protoreflect.ValueOfInt32(id))

	u := geyser.NewSubscribeUpdate()
	u.Set(subscribeUpdateDesc.Fields().ByName("pong"), protoreflect.ValueOfMessage(p))
	return u
}

func filtersValue(u *dynamicpb.Message, names ...string) protoreflect.Value {
	list := u.NewField(subscribeUpdateDesc.Fields().ByName("filters")).List()
	for _, n := range names {
		list.Append(protoreflect.ValueOfString(n))
	}
	return protoreflect.ValueOfList(list)
}
