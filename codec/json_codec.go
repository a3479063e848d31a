package codec

import (
	"encoding/json"
)

// JSONCodec uses encoding/json for serialization.
// Pros: human-readable, easy to debug on the wire.
// Cons: larger payload, and dynamic values lose their concrete types
// (numbers decode as float64), so it is only suitable for diagnostics.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
