// Package sendqueue 提供出站队列的参考实现
//
// Queue 是一个有界 FIFO，实现 interfaces.SendQueueReader，
// 供写任务按字节预算批量取出负载。生产者可以是任意 goroutine。
//
// # 语义
//
//   - Dequeue 按入队顺序返回负载，累计字节不超过预算，
//     但至少返回一条（单条超过预算时也整条返回）
//   - timeout 内没有负载时返回空切片，写任务据此发送心跳
//   - 配置了 MessageTTL 时，过期负载在出队时丢弃并计数
//
// # 使用示例
//
//	q := sendqueue.New(sendqueue.DefaultConfig())
//	_ = q.Enqueue([]byte("hello"))
//	batch := q.Dequeue(ctx, 64*1024, 200*time.Millisecond)
package sendqueue
