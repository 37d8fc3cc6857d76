// Package interfaces 定义数据平面与外部协作者之间的边界接口
//
// 数据平面消费以下能力，均由调用方（控制层）提供：
//   - SendQueueReader   - 出站队列，写任务是唯一消费者
//   - EventHandler      - 入站消息投递，读任务等待其完成后再读下一帧
//   - DisconnectHandler - 断连通知，每个任务最多调用一次
package interfaces
