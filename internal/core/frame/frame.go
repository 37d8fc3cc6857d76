package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize 头部字节数
	HeaderSize = 8

	// Version 当前协议版本
	Version uint8 = 0

	// FlagHeartbeat 心跳标志位
	FlagHeartbeat uint8 = 1 << 0
)

// ErrProtocolViolation 头部不满足协议约束
var ErrProtocolViolation = errors.New("frame: protocol violation")

// Header 帧头
type Header struct {
	Version       uint8
	Flags         uint8
	Reserved      uint16
	PayloadLength uint32
}

// IsHeartbeat 是否为心跳帧
func (h Header) IsHeartbeat() bool {
	return h.Flags&FlagHeartbeat != 0
}

// Validate 检查头部是否合法
//
// 心跳帧必须不带负载；maxPayload 为 0 时不检查长度上限。
func (h Header) Validate(maxPayload uint32) error {
	if h.IsHeartbeat() && h.PayloadLength != 0 {
		return fmt.Errorf("%w: heartbeat with payload length %d", ErrProtocolViolation, h.PayloadLength)
	}
	if maxPayload > 0 && h.PayloadLength > maxPayload {
		return fmt.Errorf("%w: payload length %d exceeds %d", ErrProtocolViolation, h.PayloadLength, maxPayload)
	}
	return nil
}

// Encode 编码一帧
//
// payload 为 nil 表示不带负载。heartbeat 为 true 时忽略 payload。
func Encode(payload []byte, heartbeat bool) []byte {
	if heartbeat {
		return AppendHeartbeat(make([]byte, 0, HeaderSize))
	}
	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), payload)
}

// AppendFrame 将一条数据帧（头部 + 负载）追加到 dst
func AppendFrame(dst, payload []byte) []byte {
	dst = appendHeader(dst, 0, uint32(len(payload)))
	return append(dst, payload...)
}

// AppendHeartbeat 将一个心跳帧追加到 dst
func AppendHeartbeat(dst []byte) []byte {
	return appendHeader(dst, FlagHeartbeat, 0)
}

func appendHeader(dst []byte, flags uint8, length uint32) []byte {
	dst = append(dst, Version, flags)
	dst = binary.LittleEndian.AppendUint16(dst, 0)
	return binary.LittleEndian.AppendUint32(dst, length)
}

// DecodeHeader 从 8 字节中解析头部，不做任何校验
func DecodeHeader(b [HeaderSize]byte) Header {
	return Header{
		Version:       b[0],
		Flags:         b[1],
		Reserved:      binary.LittleEndian.Uint16(b[2:4]),
		PayloadLength: binary.LittleEndian.Uint32(b[4:8]),
	}
}

// FrameSize 返回负载长度为 n 的数据帧在线上的字节数
func FrameSize(n int) int {
	return HeaderSize + n
}
