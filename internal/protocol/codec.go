package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame is the wire envelope: a tag naming the shape, a client-chosen
// correlation ref echoed on the result, and the msgpack-encoded payload.
type Frame struct {
	Tag     string             `msgpack:"t"`
	Ref     uint32             `msgpack:"r"`
	Payload msgpack.RawMessage `msgpack:"p"`
}

// DecodeError marks a malformed frame. The frame is rejected and the
// connection stays open; it never propagates as a panic or teardown.
type DecodeError struct {
	cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame: %v", e.cause)
}

func (e *DecodeError) Unwrap() error {
	return e.cause
}

// EncodeFrame serializes an envelope with the given payload. Encoding is
// deterministic for the shapes of the protocol (struct fields in
// declaration order, sets as sorted arrays), so re-encoding a decoded
// frame is byte-identical.
func EncodeFrame(tag string, ref uint32, payload interface{}) ([]byte, error) {
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload %s: %w", tag, err)
	}
	data, err := msgpack.Marshal(&Frame{Tag: tag, Ref: ref, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("encode frame %s: %w", tag, err)
	}
	return data, nil
}

// MustEncodeFrame is EncodeFrame for payloads the gateway builds itself,
// where a marshal failure is a programming error.
func MustEncodeFrame(tag string, ref uint32, payload interface{}) []byte {
	data, err := EncodeFrame(tag, ref, payload)
	if err != nil {
		panic(err)
	}
	return data
}

func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, &DecodeError{cause: err}
	}
	if f.Tag == "" {
		return nil, &DecodeError{cause: fmt.Errorf("missing tag")}
	}
	return &f, nil
}

// DecodePayload unmarshals the frame payload into v. A mismatch between
// the tag's shape and the payload is a DecodeError, handled like any
// malformed frame.
func DecodePayload(f *Frame, v interface{}) error {
	if len(f.Payload) == 0 {
		return &DecodeError{cause: fmt.Errorf("tag %s: empty payload", f.Tag)}
	}
	if err := msgpack.Unmarshal(f.Payload, v); err != nil {
		return &DecodeError{cause: fmt.Errorf("tag %s: %w", f.Tag, err)}
	}
	return nil
}
