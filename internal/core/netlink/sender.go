package netlink

import (
	"context"

	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
)

// UpdateSender encodes local updates and writes them to a link.
type UpdateSender struct {
	link  Link
	codec codec.Codec
}

func NewUpdateSender(link Link, c codec.Codec) *UpdateSender {
	return &UpdateSender{link: link, codec: c}
}

func (s *UpdateSender) SendLocalUpdate(ctx context.Context, update entity.Update) error {
	data, err := s.codec.Encode([]entity.Update{update})
	if err != nil {
		return err
	}
	return s.link.Send(ctx, data)
}
