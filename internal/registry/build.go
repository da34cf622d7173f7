package registry

import (
	"fmt"

	"github.com/example/ec-fulfillment/internal/config"
)

// FromConfig builds the registry selected by REGISTRY_MODE.
func FromConfig(cfg config.Bus) (Registry, error) {
	switch cfg.RegistryMode {
	case "nacos":
		return NewNacosRegistry(cfg.NacosAddrs, cfg.NacosNamespace, cfg.NacosGroup)
	case "static":
		return ParseStaticRegistry(cfg.RegistryStatic)
	default:
		return nil, fmt.Errorf("unknown registry mode: %s", cfg.RegistryMode)
	}
}
