package config

import (
	"errors"
	"fmt"
	"time"
)

// MuxImplementation 多路复用会话实现
type MuxImplementation string

const (
	// MuxImplGoYamux libp2p/go-yamux（默认，支持最大消息尺寸）
	MuxImplGoYamux MuxImplementation = "go-yamux"

	// MuxImplHashicorp hashicorp/yamux
	MuxImplHashicorp MuxImplementation = "hashicorp"
)

// MuxConfig 多路复用后端配置
//
// 窗口大小与最大帧尺寸在会话建立时协商一次，之后不再调整。
type MuxConfig struct {
	// Implementation 会话实现
	Implementation MuxImplementation `json:"implementation"`

	// InitialStreamWindowSize 初始流窗口
	InitialStreamWindowSize uint32 `json:"initial_stream_window_size"`

	// MaxStreamWindowSize 最大流窗口
	MaxStreamWindowSize uint32 `json:"max_stream_window_size"`

	// MaxMessageSize 单个 yamux 帧的最大负载
	MaxMessageSize uint32 `json:"max_message_size"`

	// KeepAliveInterval 会话保活间隔，0 表示禁用
	KeepAliveInterval Duration `json:"keep_alive_interval"`

	// ConnectionWriteTimeout 会话写超时
	ConnectionWriteTimeout Duration `json:"connection_write_timeout"`

	// SetupTimeout 打开/接受逻辑流以及请求应答的超时
	SetupTimeout Duration `json:"setup_timeout"`
}

// DefaultMuxConfig 返回默认多路复用配置
func DefaultMuxConfig() MuxConfig {
	return MuxConfig{
		Implementation:          MuxImplGoYamux,
		InitialStreamWindowSize: 256 * 1024,
		MaxStreamWindowSize:     16 * 1024 * 1024, // 16MB
		MaxMessageSize:          64 * 1024,
		KeepAliveInterval:       Duration(30 * time.Second),
		ConnectionWriteTimeout:  Duration(10 * time.Second),
		SetupTimeout:            Duration(10 * time.Second),
	}
}

// Validate 验证多路复用配置
func (c MuxConfig) Validate() error {
	switch c.Implementation {
	case MuxImplGoYamux, MuxImplHashicorp:
	default:
		return fmt.Errorf("unknown mux implementation %q", c.Implementation)
	}
	if c.InitialStreamWindowSize < 256*1024 {
		return errors.New("initial stream window size must be at least 256KiB")
	}
	if c.MaxStreamWindowSize < c.InitialStreamWindowSize {
		return errors.New("max stream window size must not be below initial window")
	}
	if c.MaxMessageSize < 1024 {
		return errors.New("max message size must be at least 1KiB")
	}
	if c.KeepAliveInterval < 0 {
		return errors.New("keep alive interval cannot be negative")
	}
	if c.ConnectionWriteTimeout <= 0 {
		return errors.New("connection write timeout must be positive")
	}
	if c.SetupTimeout <= 0 {
		return errors.New("setup timeout must be positive")
	}
	return nil
}
