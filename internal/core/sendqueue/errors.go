package sendqueue

import "errors"

var (
	// ErrQueueFull 队列已满
	ErrQueueFull = errors.New("send queue full")

	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("send queue closed")

	// ErrEmptyPayload 负载为空
	ErrEmptyPayload = errors.New("empty payload")
)
