// Package backend 提供数据平面的流后端抽象
//
// 读写任务只依赖两个最小能力：
//   - Reader.ReadFull: 带超时地读满缓冲区，绝不把部分读取当作成功
//   - Writer.WriteAll: 写入全部字节并 flush，完成后才返回
//
// 两种后端在连接建立时选定，对任务体透明：
//
// # Raw 后端
//
// 认证后的双工连接拆成独立的读半部与写半部，除帧格式外不增加任何封装：
//
//	stream := backend.NewRaw(conn)
//
// # Mux 后端
//
// 一条物理连接通过 yamux 承载每个连接方向的一条逻辑流。
// 发起方打开逻辑流并发送开流请求（通道 ID），等待一字节应答；
// 响应方接受第一条逻辑流，校验请求并应答。窗口大小与最大消息
// 尺寸在会话建立时一次性协商，之后不再调整：
//
//	stream, err := backend.NewMux(ctx, conn, types.RoleInitiator, channel, cfg)
//	driver := stream.Driver() // 后台驱动，保持会话存活并拒绝多余的逻辑流
//
// 会话实现可在 go-yamux（默认）与 hashicorp/yamux 之间切换。
//
// # 并发安全
//
// 读半部与写半部分别由读任务和写任务独占，流本身不加锁。
package backend
