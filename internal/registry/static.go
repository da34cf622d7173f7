package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// StaticRegistry resolves from a fixed name -> endpoint table. Used for
// local development and tests, where addresses come from the environment
// instead of a naming server.
type StaticRegistry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{endpoints: make(map[string]Endpoint)}
}

// ParseStaticRegistry builds a registry from "name=host:port,name=host:port".
func ParseStaticRegistry(spec string) (*StaticRegistry, error) {
	r := NewStaticRegistry()
	if spec == "" {
		return r, nil
	}
	for _, entry := range strings.Split(spec, ",") {
		name, addr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid registry entry: %s", entry)
		}
		host, portStr, ok := strings.Cut(addr, ":")
		if !ok {
			return nil, fmt.Errorf("invalid address in registry entry: %s", entry)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port in registry entry %s: %w", entry, err)
		}
		r.Set(name, Endpoint{Host: host, Port: port})
	}
	return r, nil
}

func (r *StaticRegistry) Set(serviceName string, ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[serviceName] = ep
}

// Remove drops a service, simulating an instance going unhealthy.
func (r *StaticRegistry) Remove(serviceName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, serviceName)
}

func (r *StaticRegistry) Resolve(ctx context.Context, serviceName string) (Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[serviceName]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrServiceUnavailable, serviceName)
	}
	return ep, nil
}
