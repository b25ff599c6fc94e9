package proto

import (
	"errors"
	"fmt"

	"github.com/cbeuw/linewire/internal/codec"
	"github.com/cbeuw/linewire/internal/transport"
)

var ErrUnknownProtocol = errors.New("unknown protocol")
var ErrStreamingUnsupported = errors.New("protocol does not support streaming bodies")
var ErrEmptyHead = errors.New("an empty line can only be sent as a streamed body")

// Discipline is how responses are matched to requests
type Discipline int

const (
	// Pipeline matches responses to requests by order
	Pipeline Discipline = iota
	// Multiplex matches responses to requests by request id
	Multiplex
)

func (d Discipline) String() string {
	switch d {
	case Pipeline:
		return "pipeline"
	case Multiplex:
		return "multiplex"
	}
	return fmt.Sprintf("Discipline(%d)", int(d))
}

// Protocol is a codec together with the discipline that runs on top of it
type Protocol struct {
	Name       string
	Codec      string
	Discipline Discipline
	Streaming  bool
}

var protocols = map[string]Protocol{
	"line":      {Name: "line", Codec: "line", Discipline: Pipeline},
	"streaming": {Name: "streaming", Codec: "streaming", Discipline: Pipeline, Streaming: true},
	"multiplex": {Name: "multiplex", Codec: "multiplex", Discipline: Multiplex},
}

const DefaultProtocol = "line"

func ProtocolByName(name string) (Protocol, error) {
	if name == "" {
		name = DefaultProtocol
	}
	p, ok := protocols[name]
	if !ok {
		return Protocol{}, fmt.Errorf("%w: %v", ErrUnknownProtocol, name)
	}
	return p, nil
}

// NewTransport frames stream with a fresh codec of this protocol
func (p Protocol) NewTransport(stream transport.Stream) (*transport.Transport, error) {
	c, err := codec.New(p.Codec)
	if err != nil {
		return nil, err
	}
	return transport.NewTransport(stream, c), nil
}

// outgoing is one message waiting to be written: its head and, if streamed, the body following it
type outgoing struct {
	head *codec.Frame
	body *Body
}

func (p Protocol) outgoingOf(id uint32, l Line) (*outgoing, error) {
	if l.IsStream() {
		if !p.Streaming {
			return nil, ErrStreamingUnsupported
		}
		head := codec.BodyHead()
		head.ID = id
		return &outgoing{head: head, body: l.Body}, nil
	}
	if p.Streaming && l.Text == "" {
		return nil, ErrEmptyHead
	}
	return &outgoing{head: codec.MessageWithID(id, l.Text)}, nil
}
