package middleware

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cbeuw/linewire/internal/proto"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

var echo = proto.ServiceFunc(func(ctx context.Context, req proto.Line) (proto.Line, error) {
	return req, nil
})

type countingService struct {
	calls int
}

func (c *countingService) Call(ctx context.Context, req proto.Line) (proto.Line, error) {
	c.calls++
	return req, nil
}

func TestValidate(t *testing.T) {
	inner := &countingService{}
	svc := Validate(inner)

	_, err := svc.Call(context.Background(), proto.Once("x\ny"))
	assert.Equal(t, ErrInvalidInput, err)
	assert.Equal(t, 0, inner.calls)

	resp, err := svc.Call(context.Background(), proto.Once("xy"))
	assert.NoError(t, err)
	assert.Equal(t, "xy", resp.Text)
	assert.Equal(t, 1, inner.calls)
}

func TestValidate_Response(t *testing.T) {
	svc := Validate(proto.ServiceFunc(func(ctx context.Context, req proto.Line) (proto.Line, error) {
		return proto.Once(req.Text + "\n"), nil
	}))
	_, err := svc.Call(context.Background(), proto.Once("fine"))
	assert.Equal(t, ErrInvalidInput, err)
}

func TestValidate_Body(t *testing.T) {
	svc := Validate(echo)

	resp, err := svc.Call(context.Background(), proto.Stream(proto.BodyOf("a", "b")))
	assert.NoError(t, err)
	chunks, err := resp.Body.Collect()
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, chunks)

	for _, bad := range []string{"b\nc", ""} {
		resp, err = svc.Call(context.Background(), proto.Stream(proto.BodyOf("a", bad, "d")))
		assert.NoError(t, err)
		chunks, err = resp.Body.Collect()
		assert.Equal(t, ErrInvalidInput, err)
		assert.Equal(t, []string{"a"}, chunks)
	}
}

func TestTimeout(t *testing.T) {
	finished := make(chan struct{})
	slow := proto.ServiceFunc(func(ctx context.Context, req proto.Line) (proto.Line, error) {
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return req, nil
	})

	svc := Timeout(10 * time.Millisecond)(slow)
	_, err := svc.Call(context.Background(), proto.Once("hurry"))
	assert.Equal(t, ErrTimeout, err)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Error("abandoned call did not keep running")
	}

	resp, err := Timeout(time.Second)(echo).Call(context.Background(), proto.Once("quick"))
	assert.NoError(t, err)
	assert.Equal(t, "quick", resp.Text)
}

func TestTimeout_Error(t *testing.T) {
	bad := errors.New("nope")
	svc := Timeout(time.Second)(proto.ServiceFunc(func(ctx context.Context, req proto.Line) (proto.Line, error) {
		return proto.Line{}, bad
	}))
	_, err := svc.Call(context.Background(), proto.Once("x"))
	assert.Equal(t, bad, err)
}

func TestLogging(t *testing.T) {
	var out bytes.Buffer
	logger := log.New()
	logger.SetOutput(&out)
	logger.SetLevel(log.DebugLevel)

	svc := Logging(logger.WithField("conn", "test"))(echo)
	_, err := svc.Call(context.Background(), proto.Once("Hello"))
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "request=Hello")
	assert.Contains(t, out.String(), "conn=test")
}

func TestChain(t *testing.T) {
	var order []string
	layer := func(name string) Middleware {
		return func(next proto.Service) proto.Service {
			return proto.ServiceFunc(func(ctx context.Context, req proto.Line) (proto.Line, error) {
				order = append(order, name)
				return next.Call(ctx, req)
			})
		}
	}
	_, err := Chain(echo, layer("outer"), layer("inner")).Call(context.Background(), proto.Once("x"))
	assert.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)

	factory := Wrap(proto.NewServiceFunc(func() (proto.Service, error) { return echo, nil }), Validate)
	svc, err := factory.NewService()
	assert.NoError(t, err)
	_, err = svc.Call(context.Background(), proto.Once("x\ny"))
	assert.Equal(t, ErrInvalidInput, err)
}
