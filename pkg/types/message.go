package types

// Message 从对端收到的一条数据消息
//
// Payload 的语义由上层拥有，数据平面不做解释。
type Message struct {
	// PeerID 发送方
	PeerID PeerID

	// ChannelID 消息所在通道
	ChannelID ChannelID

	// Payload 消息负载
	Payload []byte
}
