package config

import (
	"errors"
	"fmt"
)

// ValidateAll 验证整个配置的有效性
//
// 这是 Config.Validate() 的别名，提供更明确的语义。
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并尝试自动修复常见问题
//
// 可修复的问题：
//   - 等待间隔不大于发送间隔 -> 使用发送间隔的 25 倍
//   - 分块大小为零或超过负载上限 -> 使用默认值
//   - 未知的多路复用实现 -> 回退到 go-yamux
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	dp := &c.DataPlane
	if dp.HeartbeatSendInterval <= 0 {
		dp.HeartbeatSendInterval = Duration(DefaultHeartbeatSendInterval)
	}
	if dp.HeartbeatWaitInterval <= dp.HeartbeatSendInterval {
		dp.HeartbeatWaitInterval = dp.HeartbeatSendInterval * 25
	}
	if dp.ReadChunkSize <= 0 || (dp.MaxPayloadSize > 0 && uint32(dp.ReadChunkSize) > dp.MaxPayloadSize) {
		dp.ReadChunkSize = DefaultReadChunkSize
	}

	if c.Mux.Implementation != MuxImplGoYamux && c.Mux.Implementation != MuxImplHashicorp {
		c.Mux.Implementation = MuxImplGoYamux
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed after fixes: %w", err)
	}
	return c, nil
}

// MustValidate 验证配置，如果失败则 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := ValidateAll(c); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}
}
