package dataplane

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dataplane/config"
	"github.com/dep2p/go-dataplane/internal/core/frame"
	"github.com/dep2p/go-dataplane/internal/core/sendqueue"
	"github.com/dep2p/go-dataplane/pkg/interfaces"
	"github.com/dep2p/go-dataplane/pkg/types"
)

type side struct {
	dp        *DataPlane
	queue     *sendqueue.Queue
	collector *messageCollector
	rec       *disconnectRecorder
	conn      *Connected
}

// connectPair 在回环连接两端各建立一个连接方向
func connectPair(t *testing.T, kind types.BackendKind, impl config.MuxImplementation) (*side, *side) {
	t.Helper()
	c, s := testConnPair(t)

	newSide := func() *side {
		cfg := testConfig()
		if impl != "" {
			cfg.Mux.Implementation = impl
		}
		rec := newDisconnectRecorder()
		return &side{
			dp:        New(cfg, nil, rec),
			queue:     sendqueue.New(sendqueue.DefaultConfig()),
			collector: newMessageCollector(),
			rec:       rec,
		}
	}
	initiator, responder := newSide(), newSide()

	type result struct {
		conn *Connected
		err  error
	}
	respCh := make(chan result, 1)
	go func() {
		conn, err := responder.dp.Connect(context.Background(), ConnectParams{
			PeerID:    "initiator",
			ChannelID: 7,
			Role:      types.RoleResponder,
			Conn:      s,
			Queue:     responder.queue,
			Handler:   responder.collector,
			Backend:   kind,
		})
		respCh <- result{conn, err}
	}()

	var err error
	initiator.conn, err = initiator.dp.Connect(context.Background(), ConnectParams{
		PeerID:    "responder",
		ChannelID: 7,
		Role:      types.RoleInitiator,
		Conn:      c,
		Queue:     initiator.queue,
		Handler:   initiator.collector,
		Backend:   kind,
	})
	require.NoError(t, err)
	r := <-respCh
	require.NoError(t, r.err)
	responder.conn = r.conn

	t.Cleanup(func() {
		_ = initiator.dp.Close()
		_ = responder.dp.Close()
	})
	return initiator, responder
}

// TestDataPlane_EndToEnd 两端经真实连接按序交换消息
func TestDataPlane_EndToEnd(t *testing.T) {
	cases := []struct {
		name string
		kind types.BackendKind
		impl config.MuxImplementation
	}{
		{"Raw", types.BackendRaw, ""},
		{"MuxGoYamux", types.BackendMux, config.MuxImplGoYamux},
		{"MuxHashicorp", types.BackendMux, config.MuxImplHashicorp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			initiator, responder := connectPair(t, tc.kind, tc.impl)

			assert.Equal(t, tc.kind, initiator.conn.Backend())
			assert.Equal(t, types.RoleInitiator, initiator.conn.Role())
			assert.Equal(t, types.ConnStateConnected, initiator.conn.State())
			assert.NotNil(t, initiator.conn.PeerAddr())
			if tc.kind == types.BackendMux {
				assert.NotNil(t, initiator.conn.Driver())
			} else {
				assert.Nil(t, initiator.conn.Driver())
			}

			for i := 0; i < 20; i++ {
				require.NoError(t, initiator.queue.Enqueue([]byte(fmt.Sprintf("msg-%02d", i))))
			}
			big := make([]byte, 200*1024)
			for i := range big {
				big[i] = byte(i % 251)
			}
			require.NoError(t, initiator.queue.Enqueue(big))
			require.NoError(t, responder.queue.Enqueue([]byte("pong")))

			for i := 0; i < 20; i++ {
				msg := responder.collector.next(t)
				assert.Equal(t, fmt.Sprintf("msg-%02d", i), string(msg.Payload))
				assert.Equal(t, types.PeerID("initiator"), msg.PeerID)
				assert.EqualValues(t, 7, msg.ChannelID)
			}
			assert.Equal(t, big, responder.collector.next(t).Payload)
			assert.Equal(t, "pong", string(initiator.collector.next(t).Payload))

			// 空闲期间双方互发心跳且不断连
			time.Sleep(100 * time.Millisecond)
			assert.Greater(t, testutil.ToFloat64(responder.dp.metrics.HeartbeatsReceived.WithLabelValues("7")), 0.0)
			assert.Equal(t, 0, initiator.rec.count())
			assert.Equal(t, 0, responder.rec.count())
		})
	}
}

// TestDataPlane_PeerCloseReportsDisconnect 对端关闭后本端读写任务报告断连
func TestDataPlane_PeerCloseReportsDisconnect(t *testing.T) {
	initiator, responder := connectPair(t, types.BackendRaw, "")

	require.NoError(t, initiator.conn.Close())
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, initiator.conn.Wait(waitCtx))
	assert.Equal(t, 0, initiator.rec.count())

	ev := responder.rec.wait(t)
	assert.Equal(t, types.PeerID("initiator"), ev.peer)
	assert.EqualValues(t, 7, ev.channel)

	// 断连后回收另一个任务
	require.NoError(t, responder.conn.Close())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, responder.conn.Wait(ctx))
	assert.Equal(t, types.ConnStateDisconnected, responder.conn.State())
}

// TestDataPlane_CloseStopsTasks 管理器关闭后任务结束且不报告断连
func TestDataPlane_CloseStopsTasks(t *testing.T) {
	initiator, _ := connectPair(t, types.BackendRaw, "")
	require.Len(t, initiator.dp.Connections(), 1)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(initiator.dp.metrics.WriteTasks) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, initiator.dp.Close())
	require.NoError(t, initiator.dp.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, initiator.conn.Wait(ctx))
	waitDone(t, initiator.conn.Done())

	assert.Equal(t, 0, initiator.rec.count())
	assert.Equal(t, 0.0, testutil.ToFloat64(initiator.dp.metrics.WriteTasks))
	assert.Equal(t, 0.0, testutil.ToFloat64(initiator.dp.metrics.ReadTasks))
	assert.Eventually(t, func() bool { return len(initiator.dp.Connections()) == 0 },
		time.Second, 10*time.Millisecond)
}

// TestDataPlane_CloseFromDisconnectHandler 在断连回调中关闭连接与数据平面不会阻塞
func TestDataPlane_CloseFromDisconnectHandler(t *testing.T) {
	local, remote := testConnPair(t)

	var (
		current  atomic.Pointer[Connected]
		dp       *DataPlane
		once     sync.Once
		returned = make(chan error, 1)
	)
	handler := interfaces.DisconnectHandlerFunc(func(types.PeerID, types.ChannelID, error) {
		once.Do(func() {
			err := multierr.Append(current.Load().Close(), dp.Close())
			returned <- err
		})
	})
	dp = New(testConfig(), nil, handler)

	conn, err := dp.Connect(context.Background(), ConnectParams{
		PeerID:    "remote",
		ChannelID: 1,
		Role:      types.RoleInitiator,
		Conn:      local,
		Queue:     sendqueue.New(sendqueue.DefaultConfig()),
		Handler:   newMessageCollector(),
		Backend:   types.BackendRaw,
	})
	require.NoError(t, err)
	current.Store(conn)

	// 对端关闭，读任务报告断连
	require.NoError(t, remote.Close())

	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Close inside DisconnectHandler did not return")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, conn.Wait(ctx))
	require.NoError(t, dp.Wait(ctx))
	assert.Equal(t, types.ConnStateDisconnected, conn.State())
	assert.True(t, dp.isClosed())
}

// TestDataPlane_ConnectValidation 参数与状态校验
func TestDataPlane_ConnectValidation(t *testing.T) {
	dp := New(testConfig(), nil, nil)
	q := sendqueue.New(sendqueue.DefaultConfig())
	h := newMessageCollector()

	_, err := dp.Connect(context.Background(), ConnectParams{Queue: q, Handler: h})
	assert.ErrorIs(t, err, ErrInvalidParams)

	a, _ := net.Pipe()
	_, err = dp.Connect(context.Background(), ConnectParams{Conn: a, Handler: h})
	assert.ErrorIs(t, err, ErrInvalidParams)

	a, _ = net.Pipe()
	_, err = dp.Connect(context.Background(), ConnectParams{Conn: a, Queue: q, Handler: h, Backend: types.BackendKind(9)})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	require.NoError(t, dp.Close())
	a, _ = net.Pipe()
	_, err = dp.Connect(context.Background(), ConnectParams{Conn: a, Queue: q, Handler: h})
	assert.ErrorIs(t, err, ErrClosed)
}

// TestDataPlane_MuxSetupFailure 多路复用协商失败时 Connect 返回错误
func TestDataPlane_MuxSetupFailure(t *testing.T) {
	_, s := testConnPair(t)
	cfg := testConfig()
	cfg.Mux.SetupTimeout = 100 * time.Millisecond
	dp := New(cfg, nil, nil)
	defer dp.Close()

	_, err := dp.Connect(context.Background(), ConnectParams{
		PeerID:  "silent",
		Role:    types.RoleResponder,
		Conn:    s,
		Queue:   sendqueue.New(sendqueue.DefaultConfig()),
		Handler: newMessageCollector(),
		Backend: types.BackendMux,
	})
	require.Error(t, err)
	assert.Empty(t, dp.Connections())
}

// TestNewMetrics_Register 指标注册到注册表
func TestNewMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.HeartbeatsSent.WithLabelValues("1").Inc()
	m.Disconnects.WithLabelValues("1", directionRead).Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["dataplane_heartbeats_sent_total"])
	assert.True(t, names["dataplane_disconnects_total"])
	assert.True(t, names["dataplane_write_tasks"])

	// 重复注册失败
	assert.Panics(t, func() { NewMetrics(reg) })
}

// TestConfigFromUnified 从统一配置读取
func TestConfigFromUnified(t *testing.T) {
	cfg := config.NewConfig()
	cfg.DataPlane.ReadChunkSize = 1024
	cfg.Mux.Implementation = config.MuxImplHashicorp

	c := ConfigFromUnified(cfg)
	assert.Equal(t, 1024, c.ReadChunkSize)
	assert.Equal(t, config.MuxImplHashicorp, c.Mux.Implementation)

	d := DefaultConfig()
	assert.Equal(t, config.DefaultHeartbeatSendInterval, d.HeartbeatSendInterval)
	assert.Equal(t, config.DefaultHeartbeatWaitInterval, d.HeartbeatWaitInterval)
	assert.Equal(t, config.DefaultDequeueBytes, d.DequeueBytes)

	// 默认接受任意 u32 长度
	assert.Zero(t, d.MaxPayloadSize)
	assert.NoError(t, frame.Header{PayloadLength: math.MaxUint32}.Validate(d.MaxPayloadSize))

	zero := Config{}.withDefaults()
	assert.Equal(t, config.DefaultReadChunkSize, zero.ReadChunkSize)
}
