package codec

// FrameType tells the kinds of Frame apart
type FrameType uint8

const (
	FrameMessage FrameType = iota
	FrameBody
	FrameError
)

// A Frame is one decoded protocol unit.
//
// A FrameMessage with HasBody set always has an empty Payload, and is followed by FrameBody frames, the last of
// which has End set.
type Frame struct {
	Type FrameType

	// ID is the request id. It is only carried on the multiplexed wire
	ID uint32

	// Payload is the message head or the body chunk
	Payload string

	HasBody bool
	End     bool

	Err error
}

func Message(payload string) *Frame {
	return &Frame{Type: FrameMessage, Payload: payload}
}

func MessageWithID(id uint32, payload string) *Frame {
	return &Frame{Type: FrameMessage, ID: id, Payload: payload}
}

// BodyHead announces that a streaming body follows
func BodyHead() *Frame {
	return &Frame{Type: FrameMessage, HasBody: true}
}

func BodyChunk(chunk string) *Frame {
	return &Frame{Type: FrameBody, Payload: chunk}
}

// EndOfBody terminates a streaming body
func EndOfBody() *Frame {
	return &Frame{Type: FrameBody, End: true}
}

func ConnError(err error) *Frame {
	return &Frame{Type: FrameError, Err: err}
}
