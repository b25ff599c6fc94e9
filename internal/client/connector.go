package client

import (
	"context"
	"fmt"
	"net"

	"github.com/cbeuw/linewire/internal/middleware"
	"github.com/cbeuw/linewire/internal/proto"
	"github.com/cbeuw/linewire/internal/transport"
	log "github.com/sirupsen/logrus"
)

type Dialer interface {
	Dial(network, address string) (net.Conn, error)
}

// Conn is a connection to a server. Calls go through Validate, and Timeout if a call timeout is configured.
type Conn struct {
	*proto.Client
	svc proto.Service
}

func (c *Conn) Call(ctx context.Context, req proto.Line) (proto.Line, error) {
	return c.svc.Call(ctx, req)
}

// Connect dials the server and readies the connection for calls
func Connect(ctx context.Context, remote RemoteConnConfig, dialer Dialer) (*Conn, error) {
	rawConn, err := dialer.Dial("tcp", remote.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %v: %w", remote.RemoteAddr, err)
	}
	conn, err := remote.TransportMaker().PrepareConnection(rawConn, remote.RemoteAddr)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}

	t, err := remote.Protocol.NewTransport(transport.NewAsyncStream(conn, nil))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if remote.Handshake {
		if err = proto.ClientHandshake(ctx, t); err != nil {
			_ = t.Close()
			return nil, err
		}
		log.Trace("finished handshake")
	}

	client := proto.NewClient(t, remote.Protocol, proto.ClientOptions{KeepAlive: remote.KeepAlive})
	layers := []middleware.Middleware{middleware.Validate}
	if remote.CallTimeout > 0 {
		layers = append(layers, middleware.Timeout(remote.CallTimeout))
	}
	log.WithFields(log.Fields{
		"remoteAddr": remote.RemoteAddr,
		"protocol":   remote.Protocol.Name,
	}).Info("Connected")
	return &Conn{
		Client: client,
		svc:    middleware.Chain(client, layers...),
	}, nil
}
