// Package registry abstracts service discovery behind a small capability
// interface injected into orchestration code, instead of ad hoc lookups at
// every call site. Callers must tolerate ErrServiceUnavailable at any time.
package registry

import (
	"context"
	"errors"
	"fmt"
)

var ErrServiceUnavailable = errors.New("no healthy instance available")

// Endpoint is a resolved service address.
type Endpoint struct {
	Host string
	Port int
}

// BaseURL renders the endpoint as an http base URL.
func (e Endpoint) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

// Registry resolves a logical service name to a healthy endpoint.
type Registry interface {
	Resolve(ctx context.Context, serviceName string) (Endpoint, error)
}
