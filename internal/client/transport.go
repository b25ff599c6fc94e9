package client

import (
	"fmt"
	"net"
	"net/url"

	"github.com/cbeuw/linewire/internal/transport"
	"github.com/gorilla/websocket"
)

// Transport prepares a freshly dialed connection to carry the protocol
type Transport interface {
	PrepareConnection(rawConn net.Conn, remoteAddr string) (net.Conn, error)
}

// Direct sends the protocol straight over the dialed connection
type Direct struct{}

func (Direct) PrepareConnection(rawConn net.Conn, _ string) (net.Conn, error) { return rawConn, nil }

// WebSocket carries the protocol in binary websocket messages
type WebSocket struct{}

func (WebSocket) PrepareConnection(rawConn net.Conn, remoteAddr string) (net.Conn, error) {
	u := url.URL{Scheme: "ws", Host: remoteAddr, Path: "/"}
	c, _, err := websocket.NewClient(rawConn, &u, nil, 16480, 16480)
	if err != nil {
		return nil, fmt.Errorf("failed to handshake: %v", err)
	}
	return transport.NewWebSocketConn(c), nil
}
