package sendqueue

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dataplane/config"
)

// Config 队列配置
type Config struct {
	Capacity   int           // 最多容纳的负载条数
	MessageTTL time.Duration // 0 表示不过期
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// ConfigFromUnified 从统一配置创建队列配置
func ConfigFromUnified(cfg *config.Config) Config {
	sc := config.DefaultSendQueueConfig()
	if cfg != nil {
		sc = cfg.SendQueue
	}
	return Config{
		Capacity:   sc.Capacity,
		MessageTTL: sc.MessageTTL.Duration(),
	}
}

// Option 队列选项
type Option func(*Queue)

// WithClock 替换时钟，测试中用于控制过期
func WithClock(c clock.Clock) Option {
	return func(q *Queue) {
		q.clock = c
	}
}
