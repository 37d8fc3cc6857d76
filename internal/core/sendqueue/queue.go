package sendqueue

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dataplane/internal/util/logger"
	"github.com/dep2p/go-dataplane/pkg/interfaces"
)

var log = logger.Logger("core.sendqueue")

var _ interfaces.SendQueueReader = (*Queue)(nil)

// ============================================================================
//                              Queue
// ============================================================================

type item struct {
	data       []byte
	enqueuedAt time.Time
}

// Queue 有界出站队列
type Queue struct {
	mu sync.Mutex

	// 队列数据（使用链表实现 FIFO）
	items *list.List
	bytes int

	// 入队时非阻塞地发信号，唤醒等待中的 Dequeue
	notify chan struct{}
	closed bool

	clock    clock.Clock
	capacity int
	ttl      time.Duration

	// 统计
	totalEnqueued int64
	totalDequeued int64
	totalExpired  int64
	totalCleared  int64
}

// Stats 队列统计
type Stats struct {
	Len      int
	Bytes    int
	Enqueued int64
	Dequeued int64
	Expired  int64
	Cleared  int64
}

// New 创建队列
func New(cfg Config, opts ...Option) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	q := &Queue{
		items:    list.New(),
		notify:   make(chan struct{}, 1),
		clock:    clock.New(),
		capacity: cfg.Capacity,
		ttl:      cfg.MessageTTL,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue 追加一条负载
//
// 负载的所有权转移给队列，调用方不应再修改它。
func (q *Queue) Enqueue(payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.items.Len() >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.items.PushBack(&item{data: payload, enqueuedAt: q.clock.Now()})
	q.bytes += len(payload)
	q.totalEnqueued++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue 实现 interfaces.SendQueueReader
//
// ctx 取消时返回空切片。
func (q *Queue) Dequeue(ctx context.Context, maxBytes int, timeout time.Duration) [][]byte {
	if batch := q.take(maxBytes); len(batch) > 0 {
		return batch
	}
	if timeout <= 0 {
		return nil
	}

	timer := q.clock.Timer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.notify:
			if batch := q.take(maxBytes); len(batch) > 0 {
				return batch
			}
		case <-timer.C:
			return q.take(maxBytes)
		case <-ctx.Done():
			return nil
		}
	}
}

// take 在预算内取出负载，至少一条
func (q *Queue) take(maxBytes int) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dropExpiredLocked()

	var (
		batch [][]byte
		total int
	)
	for e := q.items.Front(); e != nil; e = q.items.Front() {
		it := e.Value.(*item)
		if len(batch) > 0 && total+len(it.data) > maxBytes {
			break
		}
		q.items.Remove(e)
		q.bytes -= len(it.data)
		total += len(it.data)
		batch = append(batch, it.data)
	}
	q.totalDequeued += int64(len(batch))
	return batch
}

func (q *Queue) dropExpiredLocked() {
	if q.ttl <= 0 {
		return
	}
	now := q.clock.Now()
	expired := 0
	for e := q.items.Front(); e != nil; e = q.items.Front() {
		it := e.Value.(*item)
		if now.Sub(it.enqueuedAt) < q.ttl {
			break
		}
		q.items.Remove(e)
		q.bytes -= len(it.data)
		expired++
	}
	if expired > 0 {
		q.totalExpired += int64(expired)
		log.Debug("丢弃过期负载", "count", expired)
	}
}

// Clear 丢弃所有待发送负载，返回丢弃的条数
//
// 连接方向断开后由控制层调用。
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.items.Len()
	q.items.Init()
	q.bytes = 0
	q.totalCleared += int64(n)
	return n
}

// Len 返回队列中的负载条数
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close 关闭队列
//
// 之后的 Enqueue 失败，Dequeue 仍会取出剩余负载。
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// Stats 返回统计快照
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Len:      q.items.Len(),
		Bytes:    q.bytes,
		Enqueued: q.totalEnqueued,
		Dequeued: q.totalDequeued,
		Expired:  q.totalExpired,
		Cleared:  q.totalCleared,
	}
}
