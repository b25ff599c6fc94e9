// Package middleware holds layers that wrap a proto.Service. Since a proto.Client has the same Call method as a
// Service, the same layers wrap the client side of a connection too.
package middleware

import (
	"github.com/cbeuw/linewire/internal/proto"
)

type Middleware func(next proto.Service) proto.Service

// Chain wraps svc in layers. The first layer is the outermost one.
func Chain(svc proto.Service, layers ...Middleware) proto.Service {
	for i := len(layers) - 1; i >= 0; i-- {
		svc = layers[i](svc)
	}
	return svc
}

// Wrap applies layers to every Service made by factory
func Wrap(factory proto.NewService, layers ...Middleware) proto.NewService {
	return proto.NewServiceFunc(func() (proto.Service, error) {
		svc, err := factory.NewService()
		if err != nil {
			return nil, err
		}
		return Chain(svc, layers...), nil
	})
}
