package proto

import (
	"context"
)

// A Line is a request or a response. It is either a single line of text (Once) or a streamed body (Stream).
type Line struct {
	Text string
	Body *Body
}

func Once(text string) Line { return Line{Text: text} }

func Stream(body *Body) Line { return Line{Body: body} }

func (l Line) IsStream() bool { return l.Body != nil }

func (l Line) String() string {
	if l.IsStream() {
		return "<stream>"
	}
	return l.Text
}

// Service processes one request and produces one response. A Service is used by a single connection but may be
// called concurrently.
type Service interface {
	Call(ctx context.Context, req Line) (Line, error)
}

type ServiceFunc func(ctx context.Context, req Line) (Line, error)

func (f ServiceFunc) Call(ctx context.Context, req Line) (Line, error) { return f(ctx, req) }

// NewService creates one Service for every accepted connection
type NewService interface {
	NewService() (Service, error)
}

type NewServiceFunc func() (Service, error)

func (f NewServiceFunc) NewService() (Service, error) { return f() }
