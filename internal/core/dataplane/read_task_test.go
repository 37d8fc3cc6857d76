package dataplane

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dataplane/internal/core/backend"
	"github.com/dep2p/go-dataplane/internal/core/frame"
	"github.com/dep2p/go-dataplane/pkg/interfaces"
)

// startReadTask 在 net.Pipe 的一端运行读任务，返回对端用于写入
func startReadTask(t *testing.T, cfg Config, h interfaces.EventHandler) (net.Conn, *DataPlane, *disconnectRecorder, *TaskHandle) {
	t.Helper()
	rec := newDisconnectRecorder()
	dp := New(cfg, nil, rec)

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = remote.Close()
		_ = local.Close()
		_ = dp.Close()
	})

	task := &readTask{
		ref:     managerRef{dp: dp, ctx: dp.ctx},
		peer:    testPeer,
		channel: 1,
		label:   "1",
		handler: h,
		reader:  backend.NewRaw(local).Reader(),
		cfg:     dp.cfg,
		metrics: dp.metrics,
	}
	return remote, dp, rec, spawnTask(func() { task.run(dp.ctx) })
}

// writeAsync 在后台写入，net.Pipe 的写会阻塞到对端读取
func writeAsync(w io.Writer, chunks ...[]byte) {
	go func() {
		for _, c := range chunks {
			if _, err := w.Write(c); err != nil {
				return
			}
		}
	}()
}

func header(flags uint8, length uint32) []byte {
	b := make([]byte, frame.HeaderSize)
	b[1] = flags
	binary.LittleEndian.PutUint32(b[4:], length)
	return b
}

// TestReadTask_ChunkedReassembly 分块读取的负载被完整重组，心跳被跳过
func TestReadTask_ChunkedReassembly(t *testing.T) {
	cfg := testConfig()
	cfg.ReadChunkSize = 16

	collector := newMessageCollector()
	remote, dp, rec, _ := startReadTask(t, cfg, collector)

	payload := bytes.Repeat([]byte("0123456789"), 10)
	writeAsync(remote,
		frame.Encode(nil, true),
		frame.Encode(payload, false),
		frame.Encode([]byte("second"), false),
	)

	msg := collector.next(t)
	assert.Equal(t, payload, msg.Payload)
	assert.Equal(t, testPeer, msg.PeerID)
	assert.EqualValues(t, 1, msg.ChannelID)
	assert.Equal(t, []byte("second"), collector.next(t).Payload)

	assert.Equal(t, 1.0, testutil.ToFloat64(dp.metrics.HeartbeatsReceived.WithLabelValues("1")))
	assert.Equal(t, float64(len(payload)+6), testutil.ToFloat64(dp.metrics.ReadBytes.WithLabelValues("1")))
	assert.Equal(t, 0, rec.count())
}

// recordingReader 记录每次 ReadFull 请求的字节数
type recordingReader struct {
	src      *bytes.Reader
	sizes    []int
	timeouts []time.Duration
}

func (r *recordingReader) ReadFull(buf []byte, timeout time.Duration) error {
	r.sizes = append(r.sizes, len(buf))
	r.timeouts = append(r.timeouts, timeout)
	_, err := io.ReadFull(r.src, buf)
	return err
}

// TestReadOneMessage_ChunkSizes 负载按块读取，最后一块恰为余数
func TestReadOneMessage_ChunkSizes(t *testing.T) {
	cfg := testConfig().withDefaults()
	cfg.ReadChunkSize = 16

	payload := bytes.Repeat([]byte("0123456789"), 10)
	rr := &recordingReader{src: bytes.NewReader(frame.Encode(payload, false))}
	task := &readTask{reader: rr, cfg: cfg}

	hdr, got, err := task.readOneMessage()
	require.NoError(t, err)
	assert.False(t, hdr.IsHeartbeat())
	assert.Equal(t, payload, got)

	assert.Equal(t, []int{frame.HeaderSize, 16, 16, 16, 16, 16, 16, 4}, rr.sizes)
	for _, timeout := range rr.timeouts {
		assert.Equal(t, cfg.HeartbeatWaitInterval, timeout)
	}

	// 心跳只读头部
	rr = &recordingReader{src: bytes.NewReader(frame.Encode(nil, true))}
	task.reader = rr
	hdr, got, err = task.readOneMessage()
	require.NoError(t, err)
	assert.True(t, hdr.IsHeartbeat())
	assert.Nil(t, got)
	assert.Equal(t, []int{frame.HeaderSize}, rr.sizes)
}

// TestReadTask_SlowTrickleWithoutCap 未设置单条消息上限时，每块都在等待间隔内到达的慢速负载不断连
func TestReadTask_SlowTrickleWithoutCap(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatWaitInterval = 200 * time.Millisecond
	cfg.ReadChunkSize = 1
	cfg.MaxMessageReadTime = 0

	collector := newMessageCollector()
	remote, _, rec, _ := startReadTask(t, cfg, collector)

	payload := []byte("0123456789")
	go func() {
		if _, err := remote.Write(header(0, uint32(len(payload)))); err != nil {
			return
		}
		for _, b := range payload {
			time.Sleep(50 * time.Millisecond)
			if _, err := remote.Write([]byte{b}); err != nil {
				return
			}
		}
	}()

	// 整条消息耗时约 500ms，超过等待间隔，但每块都未超时
	start := time.Now()
	msg := collector.next(t)
	assert.Equal(t, payload, msg.Payload)
	assert.Greater(t, time.Since(start), cfg.HeartbeatWaitInterval)
	assert.Equal(t, 0, rec.count())
}

// TestReadTask_TimeoutDisconnects 等待间隔内无数据时报告超时断连
func TestReadTask_TimeoutDisconnects(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatWaitInterval = 50 * time.Millisecond

	_, dp, rec, h := startReadTask(t, cfg, newMessageCollector())

	ev := rec.wait(t)
	var rerr *ReadError
	require.True(t, errors.As(ev.reason, &rerr))
	assert.Equal(t, ReadErrorTimeout, rerr.Kind)

	waitDone(t, h.Done())
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(dp.metrics.MessageReadErrors.WithLabelValues("1", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(dp.metrics.Disconnects.WithLabelValues("1", directionRead)))
	assert.Equal(t, 0.0, testutil.ToFloat64(dp.metrics.ReadTasks))
}

// TestReadTask_HeartbeatsKeepAlive 持续的心跳使读任务保持存活
func TestReadTask_HeartbeatsKeepAlive(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatWaitInterval = 100 * time.Millisecond

	remote, dp, rec, _ := startReadTask(t, cfg, newMessageCollector())

	hb := frame.Encode(nil, true)
	for i := 0; i < 6; i++ {
		_, err := remote.Write(hb)
		require.NoError(t, err)
		time.Sleep(40 * time.Millisecond)
	}
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, 6.0, testutil.ToFloat64(dp.metrics.HeartbeatsReceived.WithLabelValues("1")))
}

// TestReadTask_ShortRead 负载未读满时流结束
func TestReadTask_ShortRead(t *testing.T) {
	remote, _, rec, _ := startReadTask(t, testConfig(), newMessageCollector())

	go func() {
		_, _ = remote.Write(header(0, 100))
		_, _ = remote.Write(make([]byte, 10))
		_ = remote.Close()
	}()

	ev := rec.wait(t)
	var rerr *ReadError
	require.True(t, errors.As(ev.reason, &rerr))
	assert.Equal(t, ReadErrorShortRead, rerr.Kind)
}

// TestReadTask_ProtocolViolation 带负载的心跳帧视为协议错误
func TestReadTask_ProtocolViolation(t *testing.T) {
	collector := newMessageCollector()
	remote, dp, rec, _ := startReadTask(t, testConfig(), collector)

	writeAsync(remote, header(frame.FlagHeartbeat, 5))

	ev := rec.wait(t)
	var rerr *ReadError
	require.True(t, errors.As(ev.reason, &rerr))
	assert.Equal(t, ReadErrorProtocol, rerr.Kind)
	assert.ErrorIs(t, ev.reason, frame.ErrProtocolViolation)
	assert.Equal(t, 1.0, testutil.ToFloat64(dp.metrics.MessageReadErrors.WithLabelValues("1", "protocol")))
	assert.Empty(t, collector.msgs)
}

// TestReadTask_PayloadTooLarge 超过负载上限视为协议错误
func TestReadTask_PayloadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPayloadSize = 1024

	remote, _, rec, _ := startReadTask(t, cfg, newMessageCollector())
	writeAsync(remote, header(0, 4096))

	ev := rec.wait(t)
	assert.ErrorIs(t, ev.reason, frame.ErrProtocolViolation)
}

// TestReadTask_HandlerErrorDisconnects 处理器返回错误时本地断连
func TestReadTask_HandlerErrorDisconnects(t *testing.T) {
	handlerErr := errors.New("unsolicited message")
	collector := newMessageCollector()
	collector.err = handlerErr

	remote, dp, rec, h := startReadTask(t, testConfig(), collector)
	writeAsync(remote, frame.Encode([]byte("x"), false), frame.Encode([]byte("y"), false))

	ev := rec.wait(t)
	assert.ErrorIs(t, ev.reason, ErrHandlerFailed)
	assert.ErrorIs(t, ev.reason, handlerErr)
	waitDone(t, h.Done())

	// 只投递了第一条
	assert.Len(t, collector.msgs, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(dp.metrics.Disconnects.WithLabelValues("1", directionRead)))
}

// TestReadTask_SlowTrickleBounded 慢速滴流的负载受单条消息读取上限约束
func TestReadTask_SlowTrickleBounded(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatWaitInterval = time.Second
	cfg.ReadChunkSize = 1
	cfg.MaxMessageReadTime = 100 * time.Millisecond

	remote, _, rec, _ := startReadTask(t, cfg, newMessageCollector())

	go func() {
		if _, err := remote.Write(header(0, 50)); err != nil {
			return
		}
		for i := 0; i < 50; i++ {
			time.Sleep(20 * time.Millisecond)
			if _, err := remote.Write([]byte{byte(i)}); err != nil {
				return
			}
		}
	}()

	start := time.Now()
	ev := rec.wait(t)
	assert.Less(t, time.Since(start), 800*time.Millisecond)

	var rerr *ReadError
	require.True(t, errors.As(ev.reason, &rerr))
	assert.Equal(t, ReadErrorTimeout, rerr.Kind)
}

// TestReadTask_ExitsSilentlyOnCancel 连接被本地关闭时不报告断连
func TestReadTask_ExitsSilentlyOnCancel(t *testing.T) {
	_, dp, rec, h := startReadTask(t, testConfig(), newMessageCollector())

	require.NoError(t, dp.Close())
	// 读任务阻塞在读取上，超时后在下一次循环开始时退出
	waitDone(t, h.Done())
	assert.Equal(t, 0, rec.count())
}

// TestClassifyReadError 错误分类
func TestClassifyReadError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ReadErrorKind
	}{
		{"Deadline", os.ErrDeadlineExceeded, ReadErrorTimeout},
		{"MessageReadTime", ErrMessageReadTime, ReadErrorTimeout},
		{"EOF", io.EOF, ReadErrorShortRead},
		{"UnexpectedEOF", io.ErrUnexpectedEOF, ReadErrorShortRead},
		{"Protocol", frame.ErrProtocolViolation, ReadErrorProtocol},
		{"Reset", backend.ErrStreamReset, ReadErrorIO},
		{"Other", errors.New("boom"), ReadErrorIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyReadError(tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	// 已分类的错误保持不变
	re := &ReadError{Kind: ReadErrorProtocol, Err: io.EOF}
	assert.Same(t, re, classifyReadError(re))
	assert.Equal(t, "short_read", ReadErrorShortRead.String())
	assert.Contains(t, re.Error(), "protocol")
}

// TestReadOneMessage_EmptyPayload 零长度数据帧作为空消息投递
func TestReadOneMessage_EmptyPayload(t *testing.T) {
	collector := newMessageCollector()
	remote, _, _, _ := startReadTask(t, testConfig(), collector)

	writeAsync(remote, frame.Encode(nil, false))
	assert.Empty(t, collector.next(t).Payload)
}
