package geyser

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"solperf/pkg/constant"
)

// Commitment mirrors geyser.CommitmentLevel.
type Commitment int32

const (
	Processed Commitment = 0
	Confirmed Commitment = 1
	Finalized Commitment = 2
)

// ParseCommitment accepts processed, confirmed or finalized.
func ParseCommitment(s string) (Commitment, error) {
	switch strings.ToLower(s) {
	case "", "processed":
		return Processed, nil
	case "confirmed":
		return Confirmed, nil
	case "finalized":
		return Finalized, nil
	}
	return 0, fmt.Errorf("unknown commitment %q", s)
}

func (c Commitment) String() string {
	switch c {
	case Processed:
		return "processed"
	case Confirmed:
		return "confirmed"
	case Finalized:
		return "finalized"
	}
	return fmt.Sprintf("commitment(%d)", int32(c))
}

// NewSlotsRequest builds a SubscribeRequest for slot updates only.
func NewSlotsRequest(filterName string, commitment Commitment) *dynamicpb.Message {
	filter := dynamicpb.NewMessage(filterSlotsDesc)
	filter.Set(filterSlotsDesc.Fields().ByName("filter_by_commitment"), protoreflect.ValueOfBool(true))

	req := dynamicpb.NewMessage(subscribeRequestDesc)
	slots := req.Mutable(subscribeRequestDesc.Fields().ByName("slots")).Map()
	slots.Set(protoreflect.ValueOfString(filterName).MapKey(), protoreflect.ValueOfMessage(filter))
	req.Set(subscribeRequestDesc.Fields().ByName("commitment"), protoreflect.ValueOfEnum(protoreflect.EnumNumber(commitment)))

	return req
}

// NewPingRequest builds a SubscribeRequest carrying only a ping.
func NewPingRequest(id int32) *dynamicpb.Message {
	ping := dynamicpb.NewMessage(requestPingDesc)
	ping.Set(requestPingDesc.Fields().ByName("id"), protoreflect.ValueOfInt32(id))

	req := dynamicpb.NewMessage(subscribeRequestDesc)
	req.Set(subscribeRequestDesc.Fields().ByName("ping"), protoreflect.ValueOfMessage(ping))
	return req
}

// UpdateKind tells which member of update_oneof a SubscribeUpdate carries.
type UpdateKind int

const (
	KindSlot UpdateKind = iota + 1
	KindPing
	KindPong
	// KindOther is an update this package does not model, e.g. an account
	// update on a shared subscription.
	KindOther
)

// Update is a decoded SubscribeUpdate.
type Update struct {
	Kind   UpdateKind
	Slot   uint64
	Parent uint64
	Status Commitment
	PongID int32
}

// NewSubscribeUpdate returns an empty SubscribeUpdate to decode into.
func NewSubscribeUpdate() *dynamicpb.Message {
	return dynamicpb.NewMessage(subscribeUpdateDesc)
}

// ParseUpdate classifies m. An update carrying no update_oneof member at all
// is reported as constant.ErrEmptyUpdate.
func ParseUpdate(m *dynamicpb.Message) (Update, error) {
	fd := m.WhichOneof(subscribeUpdateDesc.Oneofs().ByName("update_oneof"))
	if fd == nil {
		if hasOtherUpdate(m.GetUnknown()) {
			return Update{Kind: KindOther}, nil
		}
		return Update{}, constant.ErrEmptyUpdate
	}

	switch fd.Name() {
	case "slot":
		var (
			s      = m.Get(fd).Message()
			fields = updateSlotDesc.Fields()
		)
		return Update{
			Kind:   KindSlot,
			Slot:   s.Get(fields.ByName("slot")).Uint(),
			Parent: s.Get(fields.ByName("parent")).Uint(),
			Status: Commitment(s.Get(fields.ByName("status")).Enum()),
		}, nil
	case "ping":
		return Update{Kind: KindPing}, nil
	case "pong":
		return Update{
			Kind:   KindPong,
			PongID: int32(m.Get(fd).Message().Get(updatePongDesc.Fields().ByName("id")).Int()),
		}, nil
	}

	return Update{}, fmt.Errorf("unexpected update field %s", fd.Name())
}

func hasOtherUpdate(raw protoreflect.RawFields) bool {
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return false
		}
		if _, ok := otherUpdateFields[num]; ok {
			return true
		}
		raw = raw[n:]
		m := protowire.ConsumeFieldValue(num, typ, raw)
		if m < 0 {
			return false
		}
		raw = raw[m:]
	}
	return false
}
