// Package geyser speaks the slot subset of the Yellowstone geyser.proto
// Subscribe stream. The schema is assembled at init from a descriptor and
// messages are carried as dynamicpb messages, so no generated code is needed.
// Fields not declared here arrive as unknown fields and are preserved.
package geyser

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	// ServiceName is the full name of the Geyser service.
	ServiceName = "geyser.Geyser"
	// SubscribeMethod is the full gRPC method name of Geyser.Subscribe.
	SubscribeMethod = "/" + ServiceName + "/Subscribe"
)

// update_oneof members that this package does not model (account,
// transaction, block, block_meta, entry, transaction_status).
var otherUpdateFields = map[protowire.Number]struct{}{
	2: {}, 4: {}, 5: {}, 7: {}, 8: {}, 10: {},
}

var (
	fileDesc protoreflect.FileDescriptor

	subscribeRequestDesc protoreflect.MessageDescriptor
	filterSlotsDesc      protoreflect.MessageDescriptor
	requestPingDesc      protoreflect.MessageDescriptor
	subscribeUpdateDesc  protoreflect.MessageDescriptor
	updateSlotDesc       protoreflect.MessageDescriptor
	updatePongDesc       protoreflect.MessageDescriptor
)

func init() {
	fd, err := protodesc.NewFile(fileDescriptorProto(), new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprintf("geyser: invalid descriptor: %v", err))
	}
	fileDesc = fd

	msgs := fileDesc.Messages()
	subscribeRequestDesc = msgs.ByName("SubscribeRequest")
	filterSlotsDesc = msgs.ByName("SubscribeRequestFilterSlots")
	requestPingDesc = msgs.ByName("SubscribeRequestPing")
	subscribeUpdateDesc = msgs.ByName("SubscribeUpdate")
	updateSlotDesc = msgs.ByName("SubscribeUpdateSlot")
	updatePongDesc = msgs.ByName("SubscribeUpdatePong")
}

// File returns the descriptor of the subset of geyser.proto known here.
func File() protoreflect.FileDescriptor {
	return fileDesc
}

func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	var (
		optional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
		repeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()

		tBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL.Enum()
		tInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum()
		tUint64  = descriptorpb.FieldDescriptorProto_TYPE_UINT64.Enum()
		tString  = descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()
		tEnum    = descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum()
		tMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
	)

	field := func(name string, num int32, label *descriptorpb.FieldDescriptorProto_Label,
		typ *descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
		f := &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(num),
			Label:  label,
			Type:   typ,
		}
		if typeName != "" {
			f.TypeName = proto.String(typeName)
		}
		return f
	}
	// proto3 `optional` fields live in a synthetic oneof named "_<field>".
	optionalIn := func(f *descriptorpb.FieldDescriptorProto, oneof int32) *descriptorpb.FieldDescriptorProto {
		f.Proto3Optional = proto.Bool(true)
		f.OneofIndex = proto.Int32(oneof)
		return f
	}
	inOneof := func(f *descriptorpb.FieldDescriptorProto, oneof int32) *descriptorpb.FieldDescriptorProto {
		f.OneofIndex = proto.Int32(oneof)
		return f
	}
	oneofs := func(names ...string) []*descriptorpb.OneofDescriptorProto {
		out := make([]*descriptorpb.OneofDescriptorProto, 0, len(names))
		for _, n := range names {
			out = append(out, &descriptorpb.OneofDescriptorProto{Name: proto.String(n)})
		}
		return out
	}

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("geyser.proto"),
		Package: proto.String("geyser"),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("CommitmentLevel"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("PROCESSED"), Number: proto.Int32(0)},
				{Name: proto.String("CONFIRMED"), Number: proto.Int32(1)},
				{Name: proto.String("FINALIZED"), Number: proto.Int32(2)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("SubscribeRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("slots", 2, repeated, tMessage, ".geyser.SubscribeRequest.SlotsEntry"),
					optionalIn(field("commitment", 6, optional, tEnum, ".geyser.CommitmentLevel"), 0),
					field("ping", 9, optional, tMessage, ".geyser.SubscribeRequestPing"),
					optionalIn(field("from_slot", 11, optional, tUint64, ""), 1),
				},
				NestedType: []*descriptorpb.DescriptorProto{{
					Name: proto.String("SlotsEntry"),
					Field: []*descriptorpb.FieldDescriptorProto{
						field("key", 1, optional, tString, ""),
						field("value", 2, optional, tMessage, ".geyser.SubscribeRequestFilterSlots"),
					},
					Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
				}},
				OneofDecl: oneofs("_commitment", "_from_slot"),
			},
			{
				Name: proto.String("SubscribeRequestFilterSlots"),
				Field: []*descriptorpb.FieldDescriptorProto{
					optionalIn(field("filter_by_commitment", 1, optional, tBool, ""), 0),
					optionalIn(field("interslot_updates", 2, optional, tBool, ""), 1),
				},
				OneofDecl: oneofs("_filter_by_commitment", "_interslot_updates"),
			},
			{
				Name: proto.String("SubscribeRequestPing"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", 1, optional, tInt32, ""),
				},
			},
			{
				Name: proto.String("SubscribeUpdate"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("filters", 1, repeated, tString, ""),
					inOneof(field("slot", 3, optional, tMessage, ".geyser.SubscribeUpdateSlot"), 0),
					inOneof(field("ping", 6, optional, tMessage, ".geyser.SubscribeUpdatePing"), 0),
					inOneof(field("pong", 9, optional, tMessage, ".geyser.SubscribeUpdatePong"), 0),
				},
				OneofDecl: oneofs("update_oneof"),
			},
			{
				Name: proto.String("SubscribeUpdateSlot"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("slot", 1, optional, tUint64, ""),
					optionalIn(field("parent", 2, optional, tUint64, ""), 0),
					field("status", 3, optional, tEnum, ".geyser.CommitmentLevel"),
					optionalIn(field("dead_error", 4, optional, tString, ""), 1),
				},
				OneofDecl: oneofs("_parent", "_dead_error"),
			},
			{
				Name: proto.String("SubscribeUpdatePing"),
			},
			{
				Name: proto.String("SubscribeUpdatePong"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", 1, optional, tInt32, ""),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Geyser"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:            proto.String("Subscribe"),
				InputType:       proto.String(".geyser.SubscribeRequest"),
				OutputType:      proto.String(".geyser.SubscribeUpdate"),
				ClientStreaming: proto.Bool(true),
				ServerStreaming: proto.Bool(true),
			}},
		}},
	}
}
