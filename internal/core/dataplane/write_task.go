package dataplane

import (
	"context"
	"fmt"
	"time"

	"github.com/dep2p/go-dataplane/internal/core/backend"
	"github.com/dep2p/go-dataplane/internal/core/frame"
	"github.com/dep2p/go-dataplane/pkg/interfaces"
	"github.com/dep2p/go-dataplane/pkg/types"
)

// writeTask 每个连接方向一个的写任务
//
// 从出站队列取出负载，聚合成一个缓冲区后一次写入并 flush。
// 队列空闲一个心跳间隔时写一个心跳帧。写失败后报告断连并结束，不重试。
type writeTask struct {
	ref     managerRef
	peer    types.PeerID
	channel types.ChannelID
	label   string

	queue   interfaces.SendQueueReader
	writer  backend.Writer
	cfg     Config
	metrics *Metrics

	// 聚合缓冲区，跨迭代复用
	buf []byte
}

func (t *writeTask) run(ctx context.Context) {
	t.metrics.WriteTasks.Inc()
	defer t.metrics.WriteTasks.Dec()

	for {
		dp, ok := t.ref.upgrade()
		if !ok {
			log.Debug("写任务退出", "peer", t.peer.ShortString(), "channel", t.channel)
			return
		}

		if err := t.writeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("写入负载失败",
				"peer", t.peer.ShortString(),
				"channel", t.channel,
				"err", err)
			dp.reportDisconnect(t.peer, t.channel, directionWrite, fmt.Errorf("write: %w", err))
			return
		}
	}
}

// writeOnce 执行一次出队与写入
func (t *writeTask) writeOnce(ctx context.Context) error {
	payloads := t.queue.Dequeue(ctx, t.cfg.DequeueBytes, t.cfg.HeartbeatSendInterval)
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := t.buf[:0]
	if len(payloads) == 0 {
		buf = frame.AppendHeartbeat(buf)
		t.metrics.HeartbeatsSent.WithLabelValues(t.label).Inc()
	} else {
		for _, p := range payloads {
			buf = frame.AppendFrame(buf, p)
		}
	}

	start := time.Now()
	if err := t.writer.WriteAll(buf); err != nil {
		return err
	}
	t.metrics.SendMessageDuration.WithLabelValues(t.label).Observe(time.Since(start).Seconds())
	t.metrics.WriteBytes.WithLabelValues(t.label).Add(float64(len(buf)))

	// 单条超大负载撑大的缓冲区不保留
	if cap(buf) <= 2*frame.FrameSize(t.cfg.DequeueBytes) {
		t.buf = buf
	} else {
		t.buf = nil
	}
	return nil
}
