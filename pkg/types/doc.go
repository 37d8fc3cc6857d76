// Package types 定义数据平面的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go     - PeerID, ChannelID
//   - enums.go   - ConnectionRole, BackendKind, ConnState
//   - message.go - Message（上行投递的入站消息）
package types
