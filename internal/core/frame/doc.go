// Package frame 实现数据平面的二进制帧格式
//
// 每帧由 8 字节定长头部和紧随其后的负载组成：
//
//	+---------+-------+----------+----------------+
//	| version | flags | reserved | payload_length |
//	|   u8    |  u8   |   u16    |      u32       |
//	+---------+-------+----------+----------------+
//
// 所有字段均为小端序。flags 的 bit0 表示心跳，心跳帧的
// payload_length 恒为 0，线上不携带负载字节。
//
// 头部定长且带长度前缀，读端无需扫描分隔符；心跳与数据的区分
// 在读取负载之前完成，心跳路径可以完全跳过负载读取。
package frame
