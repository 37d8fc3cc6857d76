package interfaces

import (
	"context"
	"time"

	"github.com/dep2p/go-dataplane/pkg/types"
)

// ============================================================================
//                              SendQueueReader 接口
// ============================================================================

// SendQueueReader 出站队列的消费端
//
// 生产者向队列写入，写任务是每个连接方向上唯一的消费者，
// 实现需保证并发安全。
type SendQueueReader interface {
	// Dequeue 取出若干负载
	//
	// 累计字节数不超过 maxBytes（至少返回一条，即使单条超过预算）。
	// 在 timeout 内没有任何负载时返回空切片。
	// 负载的所有权在返回时转移给调用方。
	Dequeue(ctx context.Context, maxBytes int, timeout time.Duration) [][]byte
}

// ============================================================================
//                              EventHandler 接口
// ============================================================================

// EventHandler 入站消息处理器
type EventHandler interface {
	// HandleMessage 投递一条消息，返回后读任务才会读取下一帧
	HandleMessage(ctx context.Context, msg types.Message) error
}

// EventHandlerFunc 函数形式的 EventHandler
type EventHandlerFunc func(ctx context.Context, msg types.Message) error

// HandleMessage 实现 EventHandler
func (f EventHandlerFunc) HandleMessage(ctx context.Context, msg types.Message) error {
	return f(ctx, msg)
}

// ============================================================================
//                              DisconnectHandler 接口
// ============================================================================

// DisconnectHandler 断连通知接收方
//
// 是否以及何时重连由实现方（控制层）决定。实现不得无限期阻塞。
// 回调运行在报告断连的任务 goroutine 上，可以在其中关闭连接方向或数据平面，
// 但不能等待任务结束。
type DisconnectHandler interface {
	// OnDisconnect 报告某个连接方向已失效，reason 为格式化后的原因
	OnDisconnect(peer types.PeerID, channel types.ChannelID, reason error)
}

// DisconnectHandlerFunc 函数形式的 DisconnectHandler
type DisconnectHandlerFunc func(peer types.PeerID, channel types.ChannelID, reason error)

// OnDisconnect 实现 DisconnectHandler
func (f DisconnectHandlerFunc) OnDisconnect(peer types.PeerID, channel types.ChannelID, reason error) {
	f(peer, channel, reason)
}
