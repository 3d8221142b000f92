package chathub

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/BaSui01/edgechat/types"
)

// Delimiter terminates every JSON record on the wire (ASCII record separator).
const Delimiter byte = 0x1e

// Frame types carried in the "type" discriminant.
const (
	TypePartial    = 1
	TypeFinal      = 2
	TypeInvocation = 4
	TypePing       = 6
	TypeAck        = 7
)

// Frame is one JSON object extracted from a socket payload.
type Frame = json.RawMessage

// controlFrame is the body of keepalive and ack frames.
type controlFrame struct {
	Type int `json:"type"`
}

// Encode serializes v and appends the record delimiter.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "encode frame").WithCause(err)
	}
	return append(data, Delimiter), nil
}

// Decode splits a payload on the record delimiter and returns each non-empty
// segment as a frame. A segment that is not a JSON object fails the whole
// payload.
func Decode(payload []byte) ([]Frame, error) {
	segments := bytes.Split(payload, []byte{Delimiter})
	frames := make([]Frame, 0, len(segments))
	for i, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if !gjson.ValidBytes(seg) || !gjson.ParseBytes(seg).IsObject() {
			return nil, types.NewError(types.ErrMalformedFrame,
				fmt.Sprintf("segment %d is not a JSON object", i))
		}
		frames = append(frames, Frame(bytes.Clone(seg)))
	}
	return frames, nil
}

// FrameType returns the frame's type discriminant, or 0 when absent.
func FrameType(f Frame) int {
	return int(gjson.GetBytes(f, "type").Int())
}

func encodeControl(frameType int) []byte {
	// json.Marshal of a struct with one int field cannot fail.
	data, _ := Encode(controlFrame{Type: frameType})
	return data
}
