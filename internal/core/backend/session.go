package backend

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	hcyamux "github.com/hashicorp/yamux"
	goyamux "github.com/libp2p/go-yamux/v5"

	"github.com/dep2p/go-dataplane/config"
	"github.com/dep2p/go-dataplane/pkg/types"
)

// muxStream yamux 逻辑流
type muxStream interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

// muxSession 屏蔽两种 yamux 实现的差异
type muxSession interface {
	Open(ctx context.Context) (muxStream, error)
	Accept() (muxStream, error)
	CloseChan() <-chan struct{}
	Close() error
}

// newSession 按配置创建会话，发起方为 yamux 客户端
func newSession(conn net.Conn, role types.ConnectionRole, cfg MuxConfig) (muxSession, error) {
	isServer := role == types.RoleResponder

	switch cfg.Implementation {
	case config.MuxImplHashicorp:
		return newHashicorpSession(conn, isServer, cfg)
	case config.MuxImplGoYamux, "":
		return newGoYamuxSession(conn, isServer, cfg)
	default:
		return nil, fmt.Errorf("unknown mux implementation %q", cfg.Implementation)
	}
}

// ============================================================================
//                              go-yamux
// ============================================================================

type goYamuxSession struct {
	session *goyamux.Session
}

func goYamuxConfig(cfg MuxConfig) *goyamux.Config {
	c := goyamux.DefaultConfig()
	c.LogOutput = io.Discard
	// 安全传输层已有缓冲
	c.ReadBufSize = 0
	if cfg.InitialStreamWindowSize > 0 {
		c.InitialStreamWindowSize = cfg.InitialStreamWindowSize
	}
	if cfg.MaxStreamWindowSize > 0 {
		c.MaxStreamWindowSize = cfg.MaxStreamWindowSize
	}
	if cfg.MaxMessageSize > 0 {
		c.MaxMessageSize = cfg.MaxMessageSize
	}
	if cfg.ConnectionWriteTimeout > 0 {
		c.ConnectionWriteTimeout = cfg.ConnectionWriteTimeout
	}
	c.EnableKeepAlive = cfg.KeepAliveInterval > 0
	if c.EnableKeepAlive {
		c.KeepAliveInterval = cfg.KeepAliveInterval
	}
	return c
}

func newGoYamuxSession(conn net.Conn, isServer bool, cfg MuxConfig) (*goYamuxSession, error) {
	c := goYamuxConfig(cfg)

	var sess *goyamux.Session
	var err error
	if isServer {
		sess, err = goyamux.Server(conn, c, nil)
	} else {
		sess, err = goyamux.Client(conn, c, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("创建 go-yamux session 失败: %w", err)
	}
	return &goYamuxSession{session: sess}, nil
}

func (s *goYamuxSession) Open(ctx context.Context) (muxStream, error) {
	st, err := s.session.OpenStream(ctx)
	if err != nil {
		return nil, parseError(err)
	}
	return st, nil
}

func (s *goYamuxSession) Accept() (muxStream, error) {
	st, err := s.session.AcceptStream()
	if err != nil {
		return nil, parseError(err)
	}
	return st, nil
}

func (s *goYamuxSession) CloseChan() <-chan struct{} {
	return s.session.CloseChan()
}

func (s *goYamuxSession) Close() error {
	return s.session.Close()
}

// ============================================================================
//                              hashicorp/yamux
// ============================================================================

type hashicorpSession struct {
	session *hcyamux.Session
}

// hashicorp/yamux 的初始窗口固定为 256KiB，也没有最大消息尺寸选项
func hashicorpConfig(cfg MuxConfig) *hcyamux.Config {
	c := hcyamux.DefaultConfig()
	c.LogOutput = io.Discard
	if cfg.MaxStreamWindowSize > 0 {
		c.MaxStreamWindowSize = cfg.MaxStreamWindowSize
	}
	if cfg.ConnectionWriteTimeout > 0 {
		c.ConnectionWriteTimeout = cfg.ConnectionWriteTimeout
	}
	if cfg.SetupTimeout > 0 {
		c.StreamOpenTimeout = cfg.SetupTimeout
	}
	c.EnableKeepAlive = cfg.KeepAliveInterval > 0
	if c.EnableKeepAlive {
		c.KeepAliveInterval = cfg.KeepAliveInterval
	}
	return c
}

func newHashicorpSession(conn net.Conn, isServer bool, cfg MuxConfig) (*hashicorpSession, error) {
	c := hashicorpConfig(cfg)

	var sess *hcyamux.Session
	var err error
	if isServer {
		sess, err = hcyamux.Server(conn, c)
	} else {
		sess, err = hcyamux.Client(conn, c)
	}
	if err != nil {
		return nil, fmt.Errorf("创建 yamux session 失败: %w", err)
	}
	return &hashicorpSession{session: sess}, nil
}

// Open 打开新流
//
// hashicorp 的 OpenStream 不支持 context，在单独的 goroutine 中等待。
func (s *hashicorpSession) Open(ctx context.Context) (muxStream, error) {
	type result struct {
		stream *hcyamux.Stream
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		st, err := s.session.OpenStream()
		resultCh <- result{stream: st, err: err}
	}()

	select {
	case <-ctx.Done():
		// 结果通道有缓冲，迟到的流在这里回收
		go func() {
			if r := <-resultCh; r.stream != nil {
				_ = r.stream.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			return nil, parseError(r.err)
		}
		return r.stream, nil
	}
}

func (s *hashicorpSession) Accept() (muxStream, error) {
	st, err := s.session.AcceptStream()
	if err != nil {
		return nil, parseError(err)
	}
	return st, nil
}

func (s *hashicorpSession) CloseChan() <-chan struct{} {
	return s.session.CloseChan()
}

func (s *hashicorpSession) Close() error {
	return s.session.Close()
}
