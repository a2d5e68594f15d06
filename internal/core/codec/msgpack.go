package codec

import (
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"

	"github.com/zeusync/replica/internal/core/entity"
)

// MsgpackCodec is the compact binary wire format.
type MsgpackCodec struct {
	handle *codec.MsgpackHandle
}

func NewMsgpackCodec() *MsgpackCodec {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	return &MsgpackCodec{handle: h}
}

func (c *MsgpackCodec) Name() string { return "msgpack" }

func (c *MsgpackCodec) Encode(updates []entity.Update) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, c.handle).Encode(toWire(updates)); err != nil {
		return nil, fmt.Errorf("failed to encode updates: %w", err)
	}
	return out, nil
}

func (c *MsgpackCodec) Decode(data []byte) ([]entity.Update, error) {
	var msg message
	if err := codec.NewDecoderBytes(data, c.handle).Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return fromWire(msg)
}
