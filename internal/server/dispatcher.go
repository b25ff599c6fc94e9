package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cbeuw/linewire/internal/middleware"
	"github.com/cbeuw/linewire/internal/proto"
	"github.com/cbeuw/linewire/internal/transport"
	log "github.com/sirupsen/logrus"
)

const handshakeTimeout = 3 * time.Second

// Serve accepts connections from l until it is closed, and serves each of them with a Service made by factory
func Serve(l net.Listener, sta *State, factory proto.NewService) error {
	waitDur := [10]time.Duration{
		50 * time.Millisecond, 100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second,
		3 * time.Second, 5 * time.Second, 10 * time.Second, 15 * time.Second, 30 * time.Second}

	fails := 0
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Errorf("%v, retrying", err)
			time.Sleep(waitDur[fails])
			if fails < 9 {
				fails++
			}
			continue
		}
		fails = 0
		go dispatchConnection(conn, sta, factory)
	}
}

func dispatchConnection(conn net.Conn, sta *State, factory proto.NewService) {
	remoteAddr := conn.RemoteAddr()
	limits := sta.Limits()

	valve := transport.MakeValve(transport.RateOrUnlimited(limits.RxRate), transport.RateOrUnlimited(limits.TxRate))
	stream := transport.NewAsyncStream(conn, valve)
	t, err := sta.Protocol.NewTransport(stream)
	if err != nil {
		log.Error(err)
		_ = stream.Close()
		return
	}

	ac, admitted := sta.Registry.Admit(remoteAddr, sta.Protocol.Name, valve, limits.MaxConns)
	if sta.Handshake {
		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		err = proto.ServerHandshake(ctx, t, admitted)
		cancel()
	} else if !admitted {
		err = proto.ErrServerAtCapacity
	}
	if err != nil {
		log.WithFields(log.Fields{
			"remoteAddr": remoteAddr,
			"reason":     err,
		}).Warn("connection refused")
		if admitted {
			sta.Registry.Remove(ac.id)
		}
		_ = stream.Close()
		return
	}
	defer sta.Registry.Remove(ac.id)

	entry := log.WithFields(log.Fields{
		"conn":       ac.id,
		"remoteAddr": remoteAddr,
	})

	svc, err := factory.NewService()
	if err != nil {
		entry.Errorf("failed to make a service: %v", err)
		_ = stream.Close()
		return
	}
	svc = middleware.Chain(svc,
		ac.counting,
		middleware.Logging(entry),
		middleware.Validate,
		middleware.Timeout(limits.CallTimeout),
	)

	entry.WithField("protocol", sta.Protocol.Name).Debug("New connection")
	err = proto.ServeConn(context.Background(), transport.NewPingPong(t), svc, sta.Protocol)
	reason := "peer closed"
	if err != nil {
		reason = err.Error()
	}
	entry.WithFields(log.Fields{
		"reason": reason,
		"calls":  ac.Calls(),
	}).Debug("Connection closed")

	if sta.Usage != nil {
		rx, tx := valve.Nullify()
		_ = sta.Usage.Add(ac.host(), ac.Calls(), rx, tx)
	}
}
