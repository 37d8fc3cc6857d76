package dataplane

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dataplane/pkg/types"
)

const testPeer types.PeerID = "12D3KooWTestPeerAAAA"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HeartbeatSendInterval = 20 * time.Millisecond
	cfg.HeartbeatWaitInterval = 500 * time.Millisecond
	return cfg
}

// testConnPair 创建测试用的 TCP 回环连接对
func testConnPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var serverConn net.Conn
	done := make(chan struct{})
	go func() {
		serverConn, _ = ln.Accept()
		close(done)
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	<-done
	require.NotNil(t, serverConn)

	t.Cleanup(func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
	})
	return clientConn, serverConn
}

// ============================================================================
//                              测试替身
// ============================================================================

// fakeQueue 由测试投喂批次的出站队列
type fakeQueue struct {
	batches chan [][]byte

	mu       sync.Mutex
	maxBytes []int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{batches: make(chan [][]byte, 16)}
}

func (q *fakeQueue) Dequeue(ctx context.Context, maxBytes int, timeout time.Duration) [][]byte {
	q.mu.Lock()
	q.maxBytes = append(q.maxBytes, maxBytes)
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-q.batches:
		return b
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// recordingWriter 记录每次 WriteAll 的内容，可注入错误
//
// failAt > 0 时从第 failAt 次调用起返回 err，否则每次都返回 err。
type recordingWriter struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
	failAt int
}

func (w *recordingWriter) WriteAll(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, append([]byte(nil), p...))
	if w.failAt > 0 && len(w.writes) < w.failAt {
		return nil
	}
	return w.err
}

func (w *recordingWriter) snapshot() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.writes...)
}

type disconnectEvent struct {
	peer    types.PeerID
	channel types.ChannelID
	reason  error
}

// disconnectRecorder 记录断连通知
type disconnectRecorder struct {
	events chan disconnectEvent
}

func newDisconnectRecorder() *disconnectRecorder {
	return &disconnectRecorder{events: make(chan disconnectEvent, 16)}
}

func (r *disconnectRecorder) OnDisconnect(peer types.PeerID, channel types.ChannelID, reason error) {
	r.events <- disconnectEvent{peer: peer, channel: channel, reason: reason}
}

func (r *disconnectRecorder) wait(t *testing.T) disconnectEvent {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnect reported")
		return disconnectEvent{}
	}
}

func (r *disconnectRecorder) count() int {
	return len(r.events)
}

// messageCollector 把收到的消息送入通道
type messageCollector struct {
	msgs chan types.Message
	err  error
}

func newMessageCollector() *messageCollector {
	return &messageCollector{msgs: make(chan types.Message, 64)}
}

func (c *messageCollector) HandleMessage(_ context.Context, msg types.Message) error {
	c.msgs <- msg
	return c.err
}

func (c *messageCollector) next(t *testing.T) types.Message {
	t.Helper()
	select {
	case msg := <-c.msgs:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered")
		return types.Message{}
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not finish")
	}
}
