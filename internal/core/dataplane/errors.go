package dataplane

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/dep2p/go-dataplane/internal/core/frame"
)

var (
	// ErrClosed 数据平面已关闭
	ErrClosed = errors.New("data plane closed")

	// ErrInvalidParams 连接参数不完整
	ErrInvalidParams = errors.New("invalid connect params")

	// ErrHandlerFailed 上层处理器拒绝了消息
	ErrHandlerFailed = errors.New("event handler failed")

	// ErrMessageReadTime 单条消息的负载未能在 MaxMessageReadTime 内读完
	ErrMessageReadTime = errors.New("message read time exceeded")

	// ErrUnknownBackend 未知的流后端类型
	ErrUnknownBackend = errors.New("unknown stream backend")
)

// ============================================================================
//                              ReadError
// ============================================================================

// ReadErrorKind 读取错误分类，String() 用作指标标签
type ReadErrorKind int

const (
	// ReadErrorTimeout 超时内未读到数据
	ReadErrorTimeout ReadErrorKind = iota
	// ReadErrorShortRead 流在读满之前结束
	ReadErrorShortRead
	// ReadErrorIO 其他 I/O 错误
	ReadErrorIO
	// ReadErrorProtocol 帧头违反协议约束
	ReadErrorProtocol
)

// String 返回分类名
func (k ReadErrorKind) String() string {
	switch k {
	case ReadErrorTimeout:
		return "timeout"
	case ReadErrorShortRead:
		return "short_read"
	case ReadErrorIO:
		return "io"
	case ReadErrorProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// ReadError 读任务的错误
type ReadError struct {
	Kind ReadErrorKind
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Kind, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// classifyReadError 将底层错误归类
func classifyReadError(err error) *ReadError {
	var re *ReadError
	if errors.As(err, &re) {
		return re
	}

	kind := ReadErrorIO
	switch {
	case errors.Is(err, frame.ErrProtocolViolation):
		kind = ReadErrorProtocol
	case isTimeout(err), errors.Is(err, ErrMessageReadTime):
		kind = ReadErrorTimeout
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		kind = ReadErrorShortRead
	}
	return &ReadError{Kind: kind, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
