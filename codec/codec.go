// Package codec serializes the request/response records that travel inside protocol frames.
//
// The default BinaryCodec derives a field schema from the record type (field numbers
// assigned in declaration order), caches it, and writes a compact self-describing binary
// form. A JSONCodec is kept for debugging. Both ends of a connection must be configured
// with the same codec; the frame carries no codec negotiation.
package codec

type CodecType byte

const (
	CodecTypeBinary CodecType = 0
	CodecTypeJSON   CodecType = 1
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}

	return &BinaryCodec{}
}
