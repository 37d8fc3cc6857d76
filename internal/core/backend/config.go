package backend

import (
	"time"

	"github.com/dep2p/go-dataplane/config"
)

// MuxConfig 多路复用后端配置
type MuxConfig struct {
	Implementation          config.MuxImplementation
	InitialStreamWindowSize uint32
	MaxStreamWindowSize     uint32
	MaxMessageSize          uint32
	KeepAliveInterval       time.Duration // 0 表示禁用保活
	ConnectionWriteTimeout  time.Duration
	SetupTimeout            time.Duration
}

// DefaultMuxConfig 返回默认配置
func DefaultMuxConfig() MuxConfig {
	return MuxConfigFromUnified(nil)
}

// MuxConfigFromUnified 从统一配置创建多路复用配置
func MuxConfigFromUnified(cfg *config.Config) MuxConfig {
	mc := config.DefaultMuxConfig()
	if cfg != nil {
		mc = cfg.Mux
	}
	return MuxConfig{
		Implementation:          mc.Implementation,
		InitialStreamWindowSize: mc.InitialStreamWindowSize,
		MaxStreamWindowSize:     mc.MaxStreamWindowSize,
		MaxMessageSize:          mc.MaxMessageSize,
		KeepAliveInterval:       mc.KeepAliveInterval.Duration(),
		ConnectionWriteTimeout:  mc.ConnectionWriteTimeout.Duration(),
		SetupTimeout:            mc.SetupTimeout.Duration(),
	}
}
