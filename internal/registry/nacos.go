package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/rs/zerolog/log"
)

// NacosRegistry resolves services against a Nacos naming server, using its
// built-in load balancing to pick one healthy instance.
type NacosRegistry struct {
	naming naming_client.INamingClient
	group  string
}

// NewNacosRegistry connects to nacos servers given as "ip1:port1,ip2:port2".
func NewNacosRegistry(addrs, namespaceID, group string) (*NacosRegistry, error) {
	if group == "" {
		group = "DEFAULT_GROUP"
	}

	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(addrs, ",") {
		host, portStr, ok := strings.Cut(addr, ":")
		if !ok {
			return nil, fmt.Errorf("invalid nacos address: %s", addr)
		}
		port, err := strconv.ParseUint(portStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid port in nacos address %s: %w", addr, err)
		}
		serverConfigs = append(serverConfigs, *constant.NewServerConfig(host, port))
	}

	clientConfig := *constant.NewClientConfig(
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogLevel("warn"),
		constant.WithNamespaceId(namespaceID),
	)

	naming, err := clients.NewNamingClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, fmt.Errorf("create nacos naming client: %w", err)
	}

	return &NacosRegistry{naming: naming, group: group}, nil
}

// Resolve picks one healthy instance for the service, or
// ErrServiceUnavailable when none exists. Nacos has no context-aware API, so
// ctx is only honored between calls.
func (r *NacosRegistry) Resolve(ctx context.Context, serviceName string) (Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return Endpoint{}, err
	}
	instance, err := r.naming.SelectOneHealthyInstance(vo.SelectOneHealthInstanceParam{
		ServiceName: serviceName,
		GroupName:   r.group,
	})
	if err != nil || instance == nil {
		log.Warn().Str("service", serviceName).Err(err).Msg("registry lookup failed")
		return Endpoint{}, fmt.Errorf("%w: %s", ErrServiceUnavailable, serviceName)
	}
	return Endpoint{Host: instance.Ip, Port: int(instance.Port)}, nil
}

// Register announces this instance as an ephemeral node; it is dropped
// automatically when heartbeats stop.
func (r *NacosRegistry) Register(serviceName, ip string, port int) error {
	ok, err := r.naming.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Weight:      10,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		GroupName:   r.group,
	})
	if err != nil {
		return fmt.Errorf("register %s with nacos: %w", serviceName, err)
	}
	if !ok {
		return fmt.Errorf("nacos rejected registration for %s", serviceName)
	}
	log.Info().Str("service", serviceName).Str("ip", ip).Int("port", port).Msg("registered with nacos")
	return nil
}

// Deregister removes this instance.
func (r *NacosRegistry) Deregister(serviceName, ip string, port int) error {
	_, err := r.naming.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Ephemeral:   true,
		GroupName:   r.group,
	})
	if err != nil {
		return fmt.Errorf("deregister %s from nacos: %w", serviceName, err)
	}
	return nil
}
