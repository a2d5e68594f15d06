package codec

import (
	"encoding/json"
	"fmt"

	"github.com/zeusync/replica/internal/core/entity"
)

// JSONCodec is the human-readable wire format.
type JSONCodec struct{}

func (c *JSONCodec) Name() string { return "json" }

func (c *JSONCodec) Encode(updates []entity.Update) ([]byte, error) {
	return json.Marshal(toWire(updates))
}

func (c *JSONCodec) Decode(data []byte) ([]entity.Update, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return fromWire(msg)
}
