package config

import "errors"

// SendQueueConfig 参考发送队列配置
type SendQueueConfig struct {
	// Capacity 队列最多容纳的消息数
	Capacity int `json:"capacity"`

	// MessageTTL 消息在队列中的最长停留时间，0 表示不过期
	MessageTTL Duration `json:"message_ttl,omitempty"`
}

// DefaultSendQueueConfig 返回默认发送队列配置
func DefaultSendQueueConfig() SendQueueConfig {
	return SendQueueConfig{
		Capacity: 1024,
	}
}

// Validate 验证发送队列配置
func (c SendQueueConfig) Validate() error {
	if c.Capacity <= 0 {
		return errors.New("send queue capacity must be positive")
	}
	if c.MessageTTL < 0 {
		return errors.New("message ttl cannot be negative")
	}
	return nil
}
