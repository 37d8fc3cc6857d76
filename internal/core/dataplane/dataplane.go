package dataplane

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dataplane/internal/core/backend"
	"github.com/dep2p/go-dataplane/internal/util/logger"
	"github.com/dep2p/go-dataplane/pkg/interfaces"
	"github.com/dep2p/go-dataplane/pkg/types"
)

var log = logger.Logger("core.dataplane")

// ============================================================================
//                              DataPlane
// ============================================================================

// DataPlane 数据平面管理器
//
// 持有配置、指标与断连回调，为每个已认证连接启动读写任务。
// 它的生命周期决定了所有任务的生命周期。
type DataPlane struct {
	cfg        Config
	metrics    *Metrics
	disconnect interfaces.DisconnectHandler

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conns  map[uuid.UUID]*Connected
	closed bool
}

// New 创建数据平面
//
// metrics 为 nil 时使用不注册的指标；disconnect 为 nil 时断连只记录日志。
func New(cfg Config, metrics *Metrics, disconnect interfaces.DisconnectHandler) *DataPlane {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if disconnect == nil {
		disconnect = interfaces.DisconnectHandlerFunc(func(types.PeerID, types.ChannelID, error) {})
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &DataPlane{
		cfg:        cfg.withDefaults(),
		metrics:    metrics,
		disconnect: disconnect,
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[uuid.UUID]*Connected),
	}
}

// ConnectParams 建立连接方向所需的参数
type ConnectParams struct {
	PeerID    types.PeerID
	ChannelID types.ChannelID
	Role      types.ConnectionRole

	// PeerAddr 为空时取 Conn.RemoteAddr()
	PeerAddr net.Addr

	// Conn 已完成握手与认证的连接，所有权转移给数据平面
	Conn net.Conn

	Queue   interfaces.SendQueueReader
	Handler interfaces.EventHandler
	Backend types.BackendKind
}

func (p *ConnectParams) validate() error {
	switch {
	case p.Conn == nil:
		return fmt.Errorf("%w: conn is nil", ErrInvalidParams)
	case p.Queue == nil:
		return fmt.Errorf("%w: send queue is nil", ErrInvalidParams)
	case p.Handler == nil:
		return fmt.Errorf("%w: event handler is nil", ErrInvalidParams)
	}
	return nil
}

// Connect 在已认证的连接上建立连接方向
//
// 按 Backend 创建流（多路复用后端会在此完成逻辑流协商），
// 然后各启动一个读任务和写任务。失败时 Conn 被关闭。
func (dp *DataPlane) Connect(ctx context.Context, p ConnectParams) (*Connected, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if dp.isClosed() {
		_ = p.Conn.Close()
		return nil, ErrClosed
	}
	if p.PeerAddr == nil {
		p.PeerAddr = p.Conn.RemoteAddr()
	}

	stream, err := dp.newStream(ctx, p)
	if err != nil {
		_ = p.Conn.Close()
		return nil, fmt.Errorf("create %s backend: %w", p.Backend, err)
	}

	dp.mu.Lock()
	defer dp.mu.Unlock()
	if dp.closed {
		_ = stream.Close()
		_ = p.Conn.Close()
		return nil, ErrClosed
	}

	c := dp.startConnected(p, stream)
	dp.conns[c.id] = c

	log.Info("连接方向已建立",
		"id", c.id,
		"peer", p.PeerID.ShortString(),
		"channel", p.ChannelID,
		"role", p.Role,
		"backend", p.Backend,
		"addr", p.PeerAddr)
	return c, nil
}

func (dp *DataPlane) newStream(ctx context.Context, p ConnectParams) (*backend.Stream, error) {
	switch p.Backend {
	case types.BackendRaw:
		return backend.NewRaw(p.Conn), nil
	case types.BackendMux:
		return backend.NewMux(ctx, p.Conn, p.Role, p.ChannelID, dp.cfg.Mux)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownBackend, p.Backend)
	}
}

// startConnected 启动读写任务并创建连接记录，调用方持有 dp.mu
func (dp *DataPlane) startConnected(p ConnectParams, stream *backend.Stream) *Connected {
	taskCtx, cancel := context.WithCancel(dp.ctx)
	ref := managerRef{dp: dp, ctx: taskCtx}
	label := p.ChannelID.String()

	wt := &writeTask{
		ref:     ref,
		peer:    p.PeerID,
		channel: p.ChannelID,
		label:   label,
		queue:   p.Queue,
		writer:  stream.Writer(),
		cfg:     dp.cfg,
		metrics: dp.metrics,
	}
	rt := &readTask{
		ref:     ref,
		peer:    p.PeerID,
		channel: p.ChannelID,
		label:   label,
		handler: p.Handler,
		reader:  stream.Reader(),
		cfg:     dp.cfg,
		metrics: dp.metrics,
	}

	c := &Connected{
		id:        uuid.New(),
		peerID:    p.PeerID,
		channelID: p.ChannelID,
		peerAddr:  p.PeerAddr,
		role:      p.Role,
		backend:   p.Backend,
		createdAt: time.Now(),
		stream:    stream,
		conn:      p.Conn,
		driver:    stream.Driver(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.writeTask = spawnTask(func() { wt.run(taskCtx) })
	c.readTask = spawnTask(func() { rt.run(taskCtx) })

	go func() {
		<-c.writeTask.Done()
		<-c.readTask.Done()
		close(c.done)
		dp.remove(c.id)
	}()
	return c
}

func (dp *DataPlane) remove(id uuid.UUID) {
	dp.mu.Lock()
	delete(dp.conns, id)
	dp.mu.Unlock()
}

func (dp *DataPlane) isClosed() bool {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return dp.closed
}

// reportDisconnect 记录并通知一次断连
func (dp *DataPlane) reportDisconnect(peer types.PeerID, channel types.ChannelID, direction string, reason error) {
	dp.metrics.Disconnects.WithLabelValues(channel.String(), direction).Inc()
	dp.disconnect.OnDisconnect(peer, channel, reason)
}

// Connections 返回仍有任务在运行的连接方向
func (dp *DataPlane) Connections() []*Connected {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	out := make([]*Connected, 0, len(dp.conns))
	for _, c := range dp.conns {
		out = append(out, c)
	}
	return out
}

// Metrics 返回数据平面指标
func (dp *DataPlane) Metrics() *Metrics {
	return dp.metrics
}

// Close 关闭数据平面
//
// 所有任务的弱引用随即失效，仍在运行的连接方向被关闭。
// 此后的任务不再报告断连。不等待任务结束，可在 DisconnectHandler
// 回调中调用，可重复调用。
func (dp *DataPlane) Close() error {
	dp.mu.Lock()
	if dp.closed {
		dp.mu.Unlock()
		return nil
	}
	dp.closed = true
	dp.cancel()
	conns := make([]*Connected, 0, len(dp.conns))
	for _, c := range dp.conns {
		conns = append(conns, c)
	}
	dp.mu.Unlock()

	var err error
	for _, c := range conns {
		err = multierr.Append(err, c.Close())
	}
	log.Info("数据平面已关闭", "connections", len(conns))
	return err
}

// Wait 等待当前所有连接方向的读写任务结束或 ctx 取消
//
// 不要在 DisconnectHandler 回调中调用，回调运行在任务 goroutine 上。
func (dp *DataPlane) Wait(ctx context.Context) error {
	for _, c := range dp.Connections() {
		if err := c.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
//                              managerRef
// ============================================================================

// managerRef 任务对 DataPlane 的弱引用
//
// DataPlane 关闭或连接方向被关闭后 upgrade 失败。
type managerRef struct {
	dp  *DataPlane
	ctx context.Context
}

func (r managerRef) upgrade() (*DataPlane, bool) {
	if r.ctx.Err() != nil {
		return nil, false
	}
	return r.dp, true
}
