package registry

import "fmt"

// 协作方服务名
const (
	ServiceDeviceRegistry = "device-registry"
	ServiceMaintenanceLog = "maintenance-log"
)

// Locator 服务定位器：按服务名解析协作方基地址
// 与传输层、熔断策略解耦，便于替换为配置中心或服务发现实现
type Locator interface {
	Resolve(service string) (string, error)
}

// StaticLocator 静态地址表实现
type StaticLocator struct {
	addrs map[string]string
}

// NewStaticLocator 创建静态定位器
func NewStaticLocator(addrs map[string]string) *StaticLocator {
	copied := make(map[string]string, len(addrs))
	for k, v := range addrs {
		copied[k] = v
	}
	return &StaticLocator{addrs: copied}
}

var _ Locator = (*StaticLocator)(nil)

func (l *StaticLocator) Resolve(service string) (string, error) {
	addr, ok := l.addrs[service]
	if !ok || addr == "" {
		return "", fmt.Errorf("no address configured for service %s", service)
	}
	return addr, nil
}
