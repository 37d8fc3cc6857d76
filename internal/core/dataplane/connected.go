package dataplane

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-dataplane/internal/core/backend"
	"github.com/dep2p/go-dataplane/pkg/types"
)

// ============================================================================
//                              TaskHandle
// ============================================================================

// TaskHandle 读任务或写任务的句柄
type TaskHandle struct {
	done chan struct{}
}

func spawnTask(fn func()) *TaskHandle {
	h := &TaskHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		fn()
	}()
	return h
}

// Done 任务结束后关闭
func (h *TaskHandle) Done() <-chan struct{} {
	return h.done
}

// Wait 等待任务结束或 ctx 取消
func (h *TaskHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ============================================================================
//                              Connected
// ============================================================================

// Connected 一个连接方向的记录
//
// 创建后不再修改，通过 Close/Wait 回收。
type Connected struct {
	id        uuid.UUID
	peerID    types.PeerID
	channelID types.ChannelID
	peerAddr  net.Addr
	role      types.ConnectionRole
	backend   types.BackendKind
	createdAt time.Time

	readTask  *TaskHandle
	writeTask *TaskHandle
	driver    *backend.Driver

	stream *backend.Stream
	conn   net.Conn
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// ID 连接方向的唯一标识
func (c *Connected) ID() uuid.UUID { return c.id }

// PeerID 对端节点
func (c *Connected) PeerID() types.PeerID { return c.peerID }

// ChannelID 通道
func (c *Connected) ChannelID() types.ChannelID { return c.channelID }

// PeerAddr 对端地址
func (c *Connected) PeerAddr() net.Addr { return c.peerAddr }

// Role 本端角色
func (c *Connected) Role() types.ConnectionRole { return c.role }

// Backend 流后端类型
func (c *Connected) Backend() types.BackendKind { return c.backend }

// CreatedAt 建立时间
func (c *Connected) CreatedAt() time.Time { return c.createdAt }

// ReadTask 读任务句柄
func (c *Connected) ReadTask() *TaskHandle { return c.readTask }

// WriteTask 写任务句柄
func (c *Connected) WriteTask() *TaskHandle { return c.writeTask }

// Driver 多路复用驱动，Raw 后端为 nil
func (c *Connected) Driver() *backend.Driver { return c.driver }

// State 返回连接状态
func (c *Connected) State() types.ConnState {
	select {
	case <-c.done:
		return types.ConnStateDisconnected
	default:
		return types.ConnStateConnected
	}
}

// Done 读写任务都结束后关闭
func (c *Connected) Done() <-chan struct{} {
	return c.done
}

// Wait 等待读写任务都结束
func (c *Connected) Wait(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readTask.Wait(gctx) })
	g.Go(func() error { return c.writeTask.Wait(gctx) })
	return g.Wait()
}

// Close 关闭连接方向
//
// 取消读写任务并关闭流、多路复用驱动与底层连接，不等待任务结束；
// 需要等待时使用 Wait 或 Done。被关闭的任务不报告断连。
// 可以在 DisconnectHandler 回调中调用。
func (c *Connected) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = multierr.Combine(
			c.stream.Close(),
			ignoreClosed(c.conn.Close()),
		)
		log.Debug("连接方向已关闭",
			"id", c.id,
			"peer", c.peerID.ShortString(),
			"channel", c.channelID)
	})
	return c.closeErr
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
