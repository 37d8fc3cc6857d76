package backend

import (
	"errors"

	goyamux "github.com/libp2p/go-yamux/v5"
	hcyamux "github.com/hashicorp/yamux"
)

var (
	// ErrStreamReset 逻辑流被对端重置
	ErrStreamReset = errors.New("stream reset")

	// ErrConnClosed 底层会话已关闭
	ErrConnClosed = errors.New("connection closed")

	// ErrSetupFailed 多路复用逻辑流建立失败
	ErrSetupFailed = errors.New("mux stream setup failed")

	// ErrChannelRejected 对端拒绝了开流请求
	ErrChannelRejected = errors.New("channel rejected by peer")

	// ErrChannelMismatch 开流请求中的通道与本地期望不符
	ErrChannelMismatch = errors.New("channel mismatch")
)

// parseError 将 yamux 错误归一为本包的错误
//
// 超时错误原样返回，以便上层按超时分类。
func parseError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, goyamux.ErrStreamReset):
		return ErrStreamReset
	case errors.Is(err, goyamux.ErrSessionShutdown),
		errors.Is(err, hcyamux.ErrSessionShutdown),
		errors.Is(err, hcyamux.ErrStreamClosed),
		errors.Is(err, hcyamux.ErrConnectionReset):
		return ErrConnClosed
	}
	return err
}
