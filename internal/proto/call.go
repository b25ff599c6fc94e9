package proto

import (
	"errors"
	"fmt"

	"github.com/cbeuw/linewire/internal/codec"
	"github.com/cbeuw/linewire/internal/transport"
)

var ErrUnknownRequestID = errors.New("response for an unknown request id")
var ErrUnexpectedResponse = errors.New("response received with no request outstanding")

type result struct {
	resp Line
	err  error
}

// pendingCall is a request in flight
type pendingCall struct {
	req  Line
	id   uint32
	ping bool

	resolved bool
	// buffered so that resolving never blocks, even if the caller has given up
	done chan result
}

func newPendingCall(req Line, ping bool) *pendingCall {
	return &pendingCall{
		req:  req,
		ping: ping,
		done: make(chan result, 1),
	}
}

func (call *pendingCall) resolve(resp Line, err error) {
	if call.resolved {
		return
	}
	call.resolved = true
	call.done <- result{resp, err}
}

// correlator matches inbound responses to pending calls
type correlator interface {
	register(call *pendingCall)
	match(f *codec.Frame) (*pendingCall, error)
	drain() []*pendingCall
	outstanding() int
}

func newCorrelator(d Discipline) correlator {
	if d == Multiplex {
		return &multiplexTable{calls: map[uint32]*pendingCall{}, nextID: 1}
	}
	return &pipelineQueue{}
}

// pipelineQueue assumes the peer answers in the order it was asked. Keep-alive pings are answered out of band,
// so they are queued separately and matched by their pong.
type pipelineQueue struct {
	calls []*pendingCall
	pings []*pendingCall
}

func (q *pipelineQueue) register(call *pendingCall) {
	if call.ping {
		q.pings = append(q.pings, call)
		return
	}
	q.calls = append(q.calls, call)
}

func (q *pipelineQueue) match(f *codec.Frame) (*pendingCall, error) {
	if len(q.pings) > 0 && !f.HasBody && f.Payload == transport.PongToken {
		call := q.pings[0]
		q.pings[0] = nil
		q.pings = q.pings[1:]
		return call, nil
	}
	if len(q.calls) == 0 {
		return nil, ErrUnexpectedResponse
	}
	call := q.calls[0]
	q.calls[0] = nil
	q.calls = q.calls[1:]
	return call, nil
}

func (q *pipelineQueue) drain() []*pendingCall {
	ret := append(q.calls, q.pings...)
	q.calls, q.pings = nil, nil
	return ret
}

func (q *pipelineQueue) outstanding() int { return len(q.calls) + len(q.pings) }

// multiplexTable keys pending calls by request id, so responses may arrive in any order
type multiplexTable struct {
	calls  map[uint32]*pendingCall
	nextID uint32
}

func (m *multiplexTable) register(call *pendingCall) {
	for {
		id := m.nextID
		m.nextID++
		if _, inFlight := m.calls[id]; !inFlight {
			call.id = id
			m.calls[id] = call
			return
		}
	}
}

func (m *multiplexTable) match(f *codec.Frame) (*pendingCall, error) {
	call, ok := m.calls[f.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownRequestID, f.ID)
	}
	delete(m.calls, f.ID)
	return call, nil
}

func (m *multiplexTable) drain() []*pendingCall {
	ret := make([]*pendingCall, 0, len(m.calls))
	for id, call := range m.calls {
		ret = append(ret, call)
		delete(m.calls, id)
	}
	return ret
}

func (m *multiplexTable) outstanding() int { return len(m.calls) }
