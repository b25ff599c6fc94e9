package transport

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConn implements net.Conn on top of a websocket.Conn. Every Write is sent as one binary message and Read
// sees the concatenation of binary messages, so message boundaries carry no meaning.
type WebSocketConn struct {
	*websocket.Conn
	writeM sync.Mutex

	// reader of the binary message currently being read
	r io.Reader
}

func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{Conn: c}
}

func (ws *WebSocketConn) Write(data []byte) (int, error) {
	ws.writeM.Lock()
	err := ws.WriteMessage(websocket.BinaryMessage, data)
	ws.writeM.Unlock()
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func (ws *WebSocketConn) Read(buf []byte) (int, error) {
	for {
		if ws.r == nil {
			t, r, err := ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if t != websocket.BinaryMessage {
				continue
			}
			ws.r = r
		}
		n, err := ws.r.Read(buf)
		if err == io.EOF {
			ws.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (ws *WebSocketConn) Close() error {
	ws.writeM.Lock()
	defer ws.writeM.Unlock()
	_ = ws.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return ws.Conn.Close()
}

func (ws *WebSocketConn) SetDeadline(t time.Time) error {
	err := ws.SetReadDeadline(t)
	if err != nil {
		return err
	}
	return ws.SetWriteDeadline(t)
}
