// Package config 提供数据平面的统一配置管理
//
// 本包沿用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.DataPlane.HeartbeatSendInterval = config.Duration(100 * time.Millisecond)
//	cfg.Mux.Implementation = config.MuxImplHashicorp
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
package config

// Config 是数据平面的完整配置结构
//
// 配置按照功能模块组织：
//   - DataPlane: 帧读写任务（心跳、聚合、分块读取）
//   - Mux: 多路复用后端（yamux 会话参数）
//   - SendQueue: 参考发送队列
type Config struct {
	// DataPlane 数据平面配置
	DataPlane DataPlaneConfig `json:"data_plane"`

	// Mux 多路复用后端配置
	Mux MuxConfig `json:"mux"`

	// SendQueue 发送队列配置
	SendQueue SendQueueConfig `json:"send_queue"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，心跳间隔与聚合预算与
// 线上部署保持一致。
func NewConfig() *Config {
	return &Config{
		DataPlane: DefaultDataPlaneConfig(),
		Mux:       DefaultMuxConfig(),
		SendQueue: DefaultSendQueueConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置是否有效，如果发现无效配置则返回错误。
func (c *Config) Validate() error {
	if err := c.DataPlane.Validate(); err != nil {
		return err
	}
	if err := c.Mux.Validate(); err != nil {
		return err
	}
	if err := c.SendQueue.Validate(); err != nil {
		return err
	}
	return nil
}
