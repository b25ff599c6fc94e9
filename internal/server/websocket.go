package server

import (
	"net/http"

	"github.com/cbeuw/linewire/internal/proto"
	"github.com/cbeuw/linewire/internal/server/usage"
	"github.com/cbeuw/linewire/internal/transport"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler serves connections carried over WebSocket. Every binary message holds raw protocol bytes.
func WebSocketHandler(sta *State, factory proto.NewService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithField("remoteAddr", r.RemoteAddr).Warnf("failed to upgrade to websocket: %v", err)
			return
		}
		dispatchConnection(transport.NewWebSocketConn(c), sta, factory)
	})
}

// AdminHandler serves the admin API
func AdminHandler(sta *State) http.Handler {
	return usage.APIRouterOf(sta.Usage, sta.Registry)
}
