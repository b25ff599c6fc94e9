package middleware

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/cbeuw/linewire/internal/proto"
)

var ErrInvalidInput = errors.New("invalid input: line contains a newline")

type validate struct {
	next proto.Service
}

// Validate refuses requests and responses that cannot be put on the wire as a single line. Streamed bodies are
// checked chunk by chunk as they are consumed; a bad chunk ends the body with ErrInvalidInput.
func Validate(next proto.Service) proto.Service {
	return &validate{next: next}
}

func (v *validate) Call(ctx context.Context, req proto.Line) (proto.Line, error) {
	req, err := validLine(req)
	if err != nil {
		return proto.Line{}, err
	}
	resp, err := v.next.Call(ctx, req)
	if err != nil {
		return resp, err
	}
	return validLine(resp)
}

func validLine(l proto.Line) (proto.Line, error) {
	if l.IsStream() {
		return proto.Stream(validBody(l.Body)), nil
	}
	if strings.ContainsRune(l.Text, '\n') {
		return proto.Line{}, ErrInvalidInput
	}
	return l, nil
}

func validBody(src *proto.Body) *proto.Body {
	dst := proto.NewBody()
	go func() {
		for {
			chunk, err := src.Next()
			if err == io.EOF {
				_ = dst.Close()
				return
			}
			if err != nil {
				_ = dst.CloseWithError(err)
				return
			}
			if chunk == "" || strings.ContainsRune(chunk, '\n') {
				_ = dst.CloseWithError(ErrInvalidInput)
				_ = src.CloseWithError(ErrInvalidInput)
				return
			}
			if dst.Send(chunk) != nil {
				return
			}
		}
	}()
	return dst
}
