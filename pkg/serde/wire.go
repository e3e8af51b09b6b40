package serde

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	magicByte  byte = 0
	headerSize      = 5
)

var ErrInvalidFraming = errors.New("invalid schema registry framing")

// Frame prepends the wire header for schema id to payload.
func Frame(id uint32, payload []byte) []byte {
	out := make([]byte, headerSize, headerSize+len(payload))
	out[0] = magicByte
	binary.BigEndian.PutUint32(out[1:headerSize], id)
	return append(out, payload...)
}

// Unframe splits a framed value into its schema id and body.
func Unframe(data []byte) (uint32, []byte, error) {
	if len(data) < headerSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrInvalidFraming, len(data))
	}
	if data[0] != magicByte {
		return 0, nil, fmt.Errorf("%w: magic byte %#x", ErrInvalidFraming, data[0])
	}
	return binary.BigEndian.Uint32(data[1:headerSize]), data[headerSize:], nil
}
