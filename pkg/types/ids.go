package types

import "strconv"

// PeerID 对端节点标识
type PeerID string

// String 返回 PeerID 的字符串表示
func (id PeerID) String() string {
	return string(id)
}

// ShortString 返回截断后的 PeerID，用于日志
func (id PeerID) ShortString() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// IsEmpty 检查 PeerID 是否为空
func (id PeerID) IsEmpty() bool {
	return id == ""
}

// ChannelID 逻辑通道标识
//
// 一个通道对应一对读写任务（一个连接方向）。
type ChannelID uint32

// String 返回通道的十进制表示，同时用作指标标签
func (c ChannelID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}
