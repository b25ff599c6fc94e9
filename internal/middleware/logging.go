package middleware

import (
	"context"
	"time"

	"github.com/cbeuw/linewire/internal/proto"
	log "github.com/sirupsen/logrus"
)

// Logging logs every call to entry
func Logging(entry *log.Entry) Middleware {
	return func(next proto.Service) proto.Service {
		return proto.ServiceFunc(func(ctx context.Context, req proto.Line) (proto.Line, error) {
			start := time.Now()
			resp, err := next.Call(ctx, req)
			e := entry.WithFields(log.Fields{
				"request":  req.String(),
				"duration": time.Since(start),
			})
			if err != nil {
				e.Warnf("call failed: %v", err)
				return resp, err
			}
			e.Debug("call served")
			return resp, err
		})
	}
}
