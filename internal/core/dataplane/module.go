package dataplane

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dataplane/config"
	"github.com/dep2p/go-dataplane/pkg/interfaces"
)

// Params 数据平面依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config               `optional:"true"`
	Registerer prometheus.Registerer        `optional:"true"`
	Disconnect interfaces.DisconnectHandler `optional:"true"`
}

// Module 是 dataplane 的 Fx 模块
var Module = fx.Module("dataplane",
	fx.Provide(NewFromParams),
	fx.Invoke(registerLifecycle),
)

// NewFromParams 从参数创建数据平面
func NewFromParams(p Params) *DataPlane {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	return New(cfg, NewMetrics(p.Registerer), p.Disconnect)
}

func registerLifecycle(lc fx.Lifecycle, dp *DataPlane) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return multierr.Append(dp.Close(), dp.Wait(ctx))
		},
	})
}
