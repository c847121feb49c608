package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"agrisense-iot/internal/domain"
)

// Breaker 协作方调用的熔断包装（与传输层解耦，按协作方独立熔断）
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker 创建熔断器
// failures: 连续失败多少次后熔断；cooldown: 熔断后多久进入半开
func NewBreaker(name string, failures uint32, cooldown time.Duration) *Breaker {
	if failures == 0 {
		failures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute 执行调用；熔断打开时直接返回 domain.ErrUnavailable
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("circuit breaker %s open: %w", b.cb.Name(), domain.ErrUnavailable)
		}
		return nil, err
	}
	return result, nil
}
