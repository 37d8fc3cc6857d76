package backend

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dep2p/go-dataplane/internal/util/logger"
	"github.com/dep2p/go-dataplane/pkg/types"
)

var log = logger.Logger("core.backend")

// 开流应答状态
const (
	statusAccepted byte = 0
	statusRejected byte = 1
)

// openRequestSize 开流请求：小端序通道 ID
const openRequestSize = 4

// NewMux 在认证后的连接上建立 yamux 会话并协商一条逻辑流
//
// 发起方打开逻辑流并发送开流请求，读取应答后即可收发帧；
// 响应方接受第一条逻辑流并应答。成功后启动后台驱动，
// 任何后续的逻辑流都会被拒绝。失败时会话被关闭，conn 也随之关闭。
func NewMux(ctx context.Context, conn net.Conn, role types.ConnectionRole, channel types.ChannelID, cfg MuxConfig) (*Stream, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: 连接不能为 nil", ErrSetupFailed)
	}
	if cfg.SetupTimeout <= 0 {
		cfg.SetupTimeout = DefaultMuxConfig().SetupTimeout
	}

	sess, err := newSession(conn, role, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSetupFailed, err)
	}

	var st muxStream
	switch role {
	case types.RoleInitiator:
		st, err = initiate(ctx, sess, channel, cfg.SetupTimeout)
	case types.RoleResponder:
		st, err = respond(ctx, sess, channel, cfg.SetupTimeout)
	default:
		err = fmt.Errorf("%w: unknown role %d", ErrSetupFailed, role)
	}
	if err != nil {
		_ = sess.Close()
		return nil, err
	}

	log.Debug("多路复用逻辑流已建立",
		"role", role,
		"channel", channel,
		"impl", cfg.Implementation)

	return &Stream{
		kind:   types.BackendMux,
		reader: &streamReader{r: st},
		writer: newStreamWriter(st),
		driver: startDriver(sess),
		closer: st,
	}, nil
}

// initiate 发起方：打开逻辑流，发送请求并等待应答
func initiate(ctx context.Context, sess muxSession, channel types.ChannelID, timeout time.Duration) (muxStream, error) {
	openCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st, err := sess.Open(openCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream: %v", ErrSetupFailed, err)
	}

	var req [openRequestSize]byte
	binary.LittleEndian.PutUint32(req[:], uint32(channel))
	if _, err := st.Write(req[:]); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("%w: send open request: %v", ErrSetupFailed, parseError(err))
	}

	status, err := readSetup(st, 1, timeout)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("%w: read open response: %v", ErrSetupFailed, err)
	}
	if status[0] != statusAccepted {
		_ = st.Close()
		return nil, fmt.Errorf("%w: channel %d", ErrChannelRejected, channel)
	}
	return st, nil
}

// respond 响应方：接受第一条逻辑流，校验请求并应答
func respond(ctx context.Context, sess muxSession, channel types.ChannelID, timeout time.Duration) (muxStream, error) {
	st, err := acceptWithTimeout(ctx, sess, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: accept stream: %v", ErrSetupFailed, err)
	}

	req, err := readSetup(st, openRequestSize, timeout)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("%w: read open request: %v", ErrSetupFailed, err)
	}

	requested := types.ChannelID(binary.LittleEndian.Uint32(req))
	if requested != channel {
		_, _ = st.Write([]byte{statusRejected})
		_ = st.Close()
		return nil, fmt.Errorf("%w: want %d, peer requested %d", ErrChannelMismatch, channel, requested)
	}

	if _, err := st.Write([]byte{statusAccepted}); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("%w: send open response: %v", ErrSetupFailed, parseError(err))
	}
	return st, nil
}

// acceptWithTimeout 在超时或 ctx 取消前接受一条逻辑流
//
// 超时后 Accept 由调用方关闭会话来解除阻塞。
func acceptWithTimeout(ctx context.Context, sess muxSession, timeout time.Duration) (muxStream, error) {
	type result struct {
		stream muxStream
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		st, err := sess.Accept()
		resultCh <- result{stream: st, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-resultCh:
		return r.stream, r.err
	case <-timer.C:
		return nil, fmt.Errorf("no stream within %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func readSetup(st muxStream, n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, n)
	if err := st.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, parseError(err)
	}
	if _, err := io.ReadFull(st, buf); err != nil {
		return nil, parseError(err)
	}
	if err := st.SetReadDeadline(time.Time{}); err != nil {
		return nil, parseError(err)
	}
	return buf, nil
}
