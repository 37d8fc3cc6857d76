// Package dataplane 实现点对点传输的数据平面
//
// 在安全、已认证的连接建立之后，数据平面接管线上的字节流：
// 为出站消息分帧、用心跳检测存活、按字节预算聚合出站队列，
// 并把入站消息同步投递给上层。
//
// # 架构
//
// 每个连接方向（peer + channel）对应一条流和两个 goroutine：
//
//	SendQueueReader ──▶ 写任务 ──▶ backend.Writer ══▶ 对端
//	EventHandler    ◀── 读任务 ◀── backend.Reader ◀══ 对端
//
// 两个任务之间没有共享的可变状态。任一任务检测到错误后最多通知
// 一次 DisconnectHandler 然后结束；另一个任务不会被强制取消，
// 它会在自己的下一次 I/O 上失败，或由调用方 Connected.Close 回收。
//
// # 生命周期
//
// 任务持有对 DataPlane 的弱引用：DataPlane.Close 或 Connected.Close
// 之后，任务在下一次循环开始时静默退出，不再报告断连。
//
// # 使用示例
//
//	dp := dataplane.New(dataplane.DefaultConfig(), nil, onDisconnect)
//	conn, err := dp.Connect(ctx, dataplane.ConnectParams{
//	    PeerID:    peer,
//	    ChannelID: 1,
//	    Role:      types.RoleInitiator,
//	    Conn:      secureConn,
//	    Queue:     queue,
//	    Handler:   handler,
//	    Backend:   types.BackendMux,
//	})
package dataplane
