package config

import (
	"errors"
	"time"
)

// 默认值
const (
	// DefaultHeartbeatSendInterval 发送端空闲多久后发送心跳
	DefaultHeartbeatSendInterval = 200 * time.Millisecond

	// DefaultHeartbeatWaitInterval 接收端单次读取的超时时间
	//
	// 为发送间隔的 25 倍，可容忍抖动与丢失一次心跳。
	DefaultHeartbeatWaitInterval = 5000 * time.Millisecond

	// DefaultDequeueBytes 单次出队聚合的字节预算
	DefaultDequeueBytes = 100 * 4 * 1490

	// DefaultReadChunkSize 负载分块读取大小
	DefaultReadChunkSize = 32 * 1024
)

// DataPlaneConfig 数据平面配置
//
// 控制每个连接方向上读写任务的行为。
type DataPlaneConfig struct {
	// HeartbeatSendInterval 心跳发送间隔（即出队超时）
	HeartbeatSendInterval Duration `json:"heartbeat_send_interval"`

	// HeartbeatWaitInterval 心跳等待间隔（每次读取的超时）
	HeartbeatWaitInterval Duration `json:"heartbeat_wait_interval"`

	// DequeueBytes 单次写入的聚合字节预算
	DequeueBytes int `json:"dequeue_bytes"`

	// ReadChunkSize 负载分块读取大小
	ReadChunkSize int `json:"read_chunk_size"`

	// MaxPayloadSize 允许的最大负载长度，超过视为协议错误
	//
	// 0 表示不限制，接受任意 u32 长度。
	MaxPayloadSize uint32 `json:"max_payload_size,omitempty"`

	// MaxMessageReadTime 单条消息从收到头部起读完负载的时间上限
	//
	// 0 表示不限制，仅按块超时。设置后可阻止慢速滴流的对端
	// 无限期占用连接。
	MaxMessageReadTime Duration `json:"max_message_read_time,omitempty"`
}

// DefaultDataPlaneConfig 返回默认数据平面配置
func DefaultDataPlaneConfig() DataPlaneConfig {
	return DataPlaneConfig{
		HeartbeatSendInterval: Duration(DefaultHeartbeatSendInterval),
		HeartbeatWaitInterval: Duration(DefaultHeartbeatWaitInterval),
		DequeueBytes:          DefaultDequeueBytes,
		ReadChunkSize:         DefaultReadChunkSize,
	}
}

// Validate 验证数据平面配置
func (c DataPlaneConfig) Validate() error {
	if c.HeartbeatSendInterval <= 0 {
		return errors.New("heartbeat send interval must be positive")
	}
	if c.HeartbeatWaitInterval <= 0 {
		return errors.New("heartbeat wait interval must be positive")
	}
	if c.HeartbeatWaitInterval <= c.HeartbeatSendInterval {
		return errors.New("heartbeat wait interval must exceed send interval")
	}
	if c.DequeueBytes <= 0 {
		return errors.New("dequeue bytes must be positive")
	}
	if c.ReadChunkSize <= 0 {
		return errors.New("read chunk size must be positive")
	}
	if c.MaxPayloadSize > 0 && uint32(c.ReadChunkSize) > c.MaxPayloadSize {
		return errors.New("read chunk size cannot exceed max payload size")
	}
	if c.MaxMessageReadTime < 0 {
		return errors.New("max message read time cannot be negative")
	}
	return nil
}
