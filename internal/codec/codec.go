// Package codec owns payload serialization.
//
// Ownership boundary:
// - Message encode/decode (msgpack)
// - empty-payload sentinel response
//
// The channel is payload-agnostic: a Message is any self-describing
// structured value (map with string keys, sequence, string, number, bool,
// nil). No schema is imposed on either side of the pipe.
package codec

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// SentinelEmptyPayload is the diagnostic response sent when a frame declares
// a zero-length payload.
const SentinelEmptyPayload = "empty payload received"

var (
	ErrEncode = errors.New("codec: encode failed")
	ErrDecode = errors.New("codec: decode failed")
)

// Message is one decoded structured value carried by a frame's payload.
type Message = any

// Encode serializes msg. Stateless and reentrant.
func Encode(msg Message) ([]byte, error) {
	b, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return b, nil
}

// Decode deserializes one payload into a Message.
func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return msg, nil
}

// EncodeSentinel returns the serialized empty-payload diagnostic response.
func EncodeSentinel() ([]byte, error) {
	return Encode(SentinelEmptyPayload)
}
