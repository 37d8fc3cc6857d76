package sendqueue

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-dataplane/config"
	"github.com/dep2p/go-dataplane/pkg/interfaces"
)

// Params 队列依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Result 队列导出结果
type Result struct {
	fx.Out

	Queue  *Queue
	Reader interfaces.SendQueueReader
}

// Module 是 sendqueue 的 Fx 模块
var Module = fx.Module("sendqueue",
	fx.Provide(NewFromParams),
	fx.Invoke(registerLifecycle),
)

// NewFromParams 从参数创建队列
func NewFromParams(p Params) Result {
	q := New(ConfigFromUnified(p.UnifiedCfg))
	return Result{Queue: q, Reader: q}
}

func registerLifecycle(lc fx.Lifecycle, q *Queue) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return q.Close()
		},
	})
}
