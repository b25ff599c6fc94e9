package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbeuw/linewire/internal/proto"
	"github.com/cbeuw/linewire/internal/server/usage"
	"github.com/cbeuw/linewire/internal/transport"
	"github.com/google/uuid"
)

// activeConn is a connection currently being served
type activeConn struct {
	id       string
	remote   net.Addr
	protocol string
	since    time.Time

	valve *transport.Valve
	calls int64
}

func (c *activeConn) addCall()     { atomic.AddInt64(&c.calls, 1) }
func (c *activeConn) Calls() int64 { return atomic.LoadInt64(&c.calls) }

// host is what usage is recorded against
func (c *activeConn) host() string {
	if c.remote == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(c.remote.String())
	if err != nil {
		return c.remote.String()
	}
	return host
}

// Registry keeps track of every open connection
type Registry struct {
	now func() time.Time

	connsM sync.RWMutex
	conns  map[string]*activeConn
}

func MakeRegistry(nowFunc func() time.Time) *Registry {
	return &Registry{
		now:   nowFunc,
		conns: make(map[string]*activeConn),
	}
}

// Admit registers a new connection unless there are already maxConns of them. A maxConns of zero means no limit.
func (r *Registry) Admit(remote net.Addr, protocol string, valve *transport.Valve, maxConns int) (*activeConn, bool) {
	r.connsM.Lock()
	defer r.connsM.Unlock()
	if maxConns > 0 && len(r.conns) >= maxConns {
		return nil, false
	}
	c := &activeConn{
		id:       uuid.New().String(),
		remote:   remote,
		protocol: protocol,
		since:    r.now(),
		valve:    valve,
	}
	r.conns[c.id] = c
	return c, true
}

func (r *Registry) Remove(id string) {
	r.connsM.Lock()
	delete(r.conns, id)
	r.connsM.Unlock()
}

func (r *Registry) Len() int {
	r.connsM.RLock()
	defer r.connsM.RUnlock()
	return len(r.conns)
}

// SetRates changes the rate limits of every open connection
func (r *Registry) SetRates(rxRate, txRate int64) {
	r.connsM.RLock()
	defer r.connsM.RUnlock()
	for _, c := range r.conns {
		c.valve.SetRxRate(transport.RateOrUnlimited(rxRate))
		c.valve.SetTxRate(transport.RateOrUnlimited(txRate))
	}
}

func (r *Registry) ListConnections() []usage.ConnectionInfo {
	r.connsM.RLock()
	defer r.connsM.RUnlock()
	infos := make([]usage.ConnectionInfo, 0, len(r.conns))
	for _, c := range r.conns {
		remote := ""
		if c.remote != nil {
			remote = c.remote.String()
		}
		infos = append(infos, usage.ConnectionInfo{
			ID:         c.id,
			RemoteAddr: remote,
			Protocol:   c.protocol,
			Calls:      c.Calls(),
			Rx:         c.valve.GetRx(),
			Tx:         c.valve.GetTx(),
			Since:      c.since,
		})
	}
	return infos
}

// counting counts the calls made on the connection
func (c *activeConn) counting(next proto.Service) proto.Service {
	return proto.ServiceFunc(func(ctx context.Context, req proto.Line) (proto.Line, error) {
		c.addCall()
		return next.Call(ctx, req)
	})
}
