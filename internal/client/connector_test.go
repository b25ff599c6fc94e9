package client

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cbeuw/connutil"
	"github.com/cbeuw/linewire/internal/middleware"
	"github.com/cbeuw/linewire/internal/proto"
	"github.com/cbeuw/linewire/internal/server"
	"github.com/stretchr/testify/assert"
)

var echoFactory = proto.NewServiceFunc(func() (proto.Service, error) {
	return proto.ServiceFunc(func(ctx context.Context, req proto.Line) (proto.Line, error) {
		if req.Text == "slow" {
			time.Sleep(100 * time.Millisecond)
		}
		return req, nil
	}), nil
})

func serverState(t *testing.T, conf string) *server.State {
	sta, err := server.InitState(time.Now)
	if err != nil {
		t.Fatal(err)
	}
	if err = sta.ParseConfig(conf); err != nil {
		t.Fatal(err)
	}
	return sta
}

func TestConnect(t *testing.T) {
	sta := serverState(t, `{"BindAddr":[":7000"],"Protocol":"multiplex","Handshake":true}`)
	dialer, l := connutil.DialerListener(10 * 1024)
	go server.Serve(l, sta, echoFactory)

	raw := RawConfig{RemoteHost: "127.0.0.1", RemotePort: "7000", Protocol: "multiplex", Handshake: true, CallTimeoutMs: 20}
	remote, err := raw.ProcessRawConfig()
	if err != nil {
		t.Fatal(err)
	}
	conn, err := Connect(context.Background(), remote, dialer)
	if !assert.NoError(t, err) {
		return
	}
	defer conn.Close()

	resp, err := conn.Call(context.Background(), proto.Once("Hello"))
	assert.NoError(t, err)
	assert.Equal(t, "Hello", resp.Text)

	_, err = conn.Call(context.Background(), proto.Once("x\ny"))
	assert.Equal(t, middleware.ErrInvalidInput, err)

	_, err = conn.Call(context.Background(), proto.Once("slow"))
	assert.Equal(t, middleware.ErrTimeout, err)

	// the connection survives both
	resp, err = conn.Call(context.Background(), proto.Once("again"))
	assert.NoError(t, err)
	assert.Equal(t, "again", resp.Text)
}

func TestConnect_WebSocket(t *testing.T) {
	sta := serverState(t, `{"WebSocketAddr":":8080"}`)
	dialer, l := connutil.DialerListener(10 * 1024)
	go http.Serve(l, server.WebSocketHandler(sta, echoFactory))

	raw := RawConfig{RemoteHost: "127.0.0.1", RemotePort: "8080", Transport: "websocket"}
	remote, err := raw.ProcessRawConfig()
	if err != nil {
		t.Fatal(err)
	}
	conn, err := Connect(context.Background(), remote, dialer)
	if !assert.NoError(t, err) {
		return
	}
	defer conn.Close()

	resp, err := conn.Call(context.Background(), proto.Once("Hello"))
	assert.NoError(t, err)
	assert.Equal(t, "Hello", resp.Text)
}
