package dataplane

import (
	"time"

	"github.com/dep2p/go-dataplane/config"
	"github.com/dep2p/go-dataplane/internal/core/backend"
)

// Config 数据平面配置
type Config struct {
	HeartbeatSendInterval time.Duration // 出队超时，空闲时按此间隔发心跳
	HeartbeatWaitInterval time.Duration // 每次读取（头部或负载块）的超时
	DequeueBytes          int           // 单次写入的聚合字节预算
	ReadChunkSize         int           // 负载分块读取大小
	MaxPayloadSize        uint32        // 0 表示不限制
	MaxMessageReadTime    time.Duration // 0 表示不限制

	Mux backend.MuxConfig
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// ConfigFromUnified 从统一配置创建数据平面配置
func ConfigFromUnified(cfg *config.Config) Config {
	dp := config.DefaultDataPlaneConfig()
	if cfg != nil {
		dp = cfg.DataPlane
	}
	return Config{
		HeartbeatSendInterval: dp.HeartbeatSendInterval.Duration(),
		HeartbeatWaitInterval: dp.HeartbeatWaitInterval.Duration(),
		DequeueBytes:          dp.DequeueBytes,
		ReadChunkSize:         dp.ReadChunkSize,
		MaxPayloadSize:        dp.MaxPayloadSize,
		MaxMessageReadTime:    dp.MaxMessageReadTime.Duration(),
		Mux:                   backend.MuxConfigFromUnified(cfg),
	}
}

// withDefaults 用默认值补齐零值字段
func (c Config) withDefaults() Config {
	if c.HeartbeatSendInterval <= 0 {
		c.HeartbeatSendInterval = config.DefaultHeartbeatSendInterval
	}
	if c.HeartbeatWaitInterval <= 0 {
		c.HeartbeatWaitInterval = config.DefaultHeartbeatWaitInterval
	}
	if c.DequeueBytes <= 0 {
		c.DequeueBytes = config.DefaultDequeueBytes
	}
	if c.ReadChunkSize <= 0 {
		c.ReadChunkSize = config.DefaultReadChunkSize
	}
	return c
}
