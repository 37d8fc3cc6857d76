package dataplane

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-dataplane/internal/core/backend"
	"github.com/dep2p/go-dataplane/internal/core/frame"
	"github.com/dep2p/go-dataplane/pkg/interfaces"
	"github.com/dep2p/go-dataplane/pkg/types"
)

// readTask 每个连接方向一个的读任务
//
// 逐帧读取，跳过心跳，把数据消息同步投递给事件处理器；
// 处理器返回前不会读取下一帧，以此向对端施加背压。
type readTask struct {
	ref     managerRef
	peer    types.PeerID
	channel types.ChannelID
	label   string

	handler interfaces.EventHandler
	reader  backend.Reader
	cfg     Config
	metrics *Metrics
}

func (t *readTask) run(ctx context.Context) {
	t.metrics.ReadTasks.Inc()
	defer t.metrics.ReadTasks.Dec()

	for {
		dp, ok := t.ref.upgrade()
		if !ok {
			log.Debug("读任务退出", "peer", t.peer.ShortString(), "channel", t.channel)
			return
		}

		start := time.Now()
		hdr, payload, err := t.readOneMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			rerr := classifyReadError(err)
			t.observeRead(readResultError, start)
			t.metrics.MessageReadErrors.WithLabelValues(t.label, rerr.Kind.String()).Inc()
			log.Info("读取消息失败",
				"peer", t.peer.ShortString(),
				"channel", t.channel,
				"kind", rerr.Kind,
				"err", rerr.Err)
			dp.reportDisconnect(t.peer, t.channel, directionRead, rerr)
			return
		}

		if hdr.IsHeartbeat() {
			t.metrics.HeartbeatsReceived.WithLabelValues(t.label).Inc()
			t.observeRead(readResultHeartbeat, start)
			continue
		}
		t.observeRead(readResultMessage, start)
		t.metrics.ReadBytes.WithLabelValues(t.label).Add(float64(len(payload)))

		if err := t.deliver(ctx, payload); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("事件处理器返回错误",
				"peer", t.peer.ShortString(),
				"channel", t.channel,
				"err", err)
			dp.reportDisconnect(t.peer, t.channel, directionRead, fmt.Errorf("%w: %w", ErrHandlerFailed, err))
			return
		}
	}
}

// readOneMessage 读取下一帧
//
// 头部与每个负载块各自受 HeartbeatWaitInterval 约束；设置了
// MaxMessageReadTime 时，负载整体还受该上限约束。
func (t *readTask) readOneMessage() (frame.Header, []byte, error) {
	var hb [frame.HeaderSize]byte
	if err := t.reader.ReadFull(hb[:], t.cfg.HeartbeatWaitInterval); err != nil {
		return frame.Header{}, nil, err
	}

	hdr := frame.DecodeHeader(hb)
	if err := hdr.Validate(t.cfg.MaxPayloadSize); err != nil {
		return hdr, nil, err
	}
	if hdr.IsHeartbeat() {
		return hdr, nil, nil
	}

	var deadline time.Time
	if t.cfg.MaxMessageReadTime > 0 {
		deadline = time.Now().Add(t.cfg.MaxMessageReadTime)
	}

	payload := make([]byte, hdr.PayloadLength)
	for off := 0; off < len(payload); {
		n := min(len(payload)-off, t.cfg.ReadChunkSize)

		timeout := t.cfg.HeartbeatWaitInterval
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return hdr, nil, fmt.Errorf("%w: %d of %d bytes", ErrMessageReadTime, off, len(payload))
			}
			timeout = min(timeout, remaining)
		}

		if err := t.reader.ReadFull(payload[off:off+n], timeout); err != nil {
			return hdr, nil, err
		}
		off += n
	}
	return hdr, payload, nil
}

func (t *readTask) deliver(ctx context.Context, payload []byte) error {
	timer := prometheus.NewTimer(t.metrics.EventHandlerDuration.WithLabelValues(t.label))
	defer timer.ObserveDuration()

	return t.handler.HandleMessage(ctx, types.Message{
		PeerID:    t.peer,
		ChannelID: t.channel,
		Payload:   payload,
	})
}

func (t *readTask) observeRead(result string, start time.Time) {
	t.metrics.ReadMessageDuration.WithLabelValues(t.label, result).Observe(time.Since(start).Seconds())
}
