// Package main 提供数据平面演示程序
//
// 监听端作为响应方回显收到的每条消息；拨号端作为发起方发送若干消息，
// 收齐回显后退出。连接不做握手认证，仅用于演示与联调。
//
//	dataplane -listen 127.0.0.1:9000 -backend mux
//	dataplane -dial 127.0.0.1:9000 -backend mux -count 10
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-dataplane/config"
	"github.com/dep2p/go-dataplane/internal/core/dataplane"
	"github.com/dep2p/go-dataplane/internal/core/sendqueue"
	"github.com/dep2p/go-dataplane/internal/util/logger"
	"github.com/dep2p/go-dataplane/pkg/interfaces"
	"github.com/dep2p/go-dataplane/pkg/types"
)

var log = logger.Logger("cmd")

var (
	listenAddr  = flag.String("listen", "", "监听地址（响应方）")
	dialAddr    = flag.String("dial", "", "拨号地址（发起方）")
	backendName = flag.String("backend", "raw", "流后端 (raw/mux)")
	muxImpl     = flag.String("mux", "", "多路复用实现 (go-yamux/hashicorp)")
	channel     = flag.Uint("channel", 1, "通道 ID")
	peerName    = flag.String("peer", "remote", "对端标识（仅用于日志与指标）")
	count       = flag.Int("count", 10, "拨号端发送的消息数")
	configFile  = flag.String("config", "", "JSON 配置文件路径")
	metricsAddr = flag.String("metrics", "", "Prometheus 指标监听地址（为空不启用）")
	verbose     = flag.Bool("v", false, "输出 fx 事件日志")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if (*listenAddr == "") == (*dialAddr == "") {
		return errors.New("必须且只能指定 -listen 或 -dial 之一")
	}
	kind, ok := types.ParseBackendKind(*backendName)
	if !ok {
		return fmt.Errorf("未知的流后端: %s", *backendName)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	zapLogger := zap.NewNop()
	if *verbose {
		if zapLogger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zapLogger}
		}),
		fx.Supply(cfg),
		fx.Provide(
			func() prometheus.Registerer { return reg },
			newDisconnectHandler,
		),
		sendqueue.Module,
		dataplane.Module,
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, dp *dataplane.DataPlane, q *sendqueue.Queue) {
			d := &demo{dp: dp, queue: q, kind: kind, shutdowner: sd}
			lc.Append(fx.Hook{OnStart: d.start, OnStop: d.stop})
		}),
		fx.Invoke(func(lc fx.Lifecycle) {
			registerMetricsServer(lc, reg)
		}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	select {
	case sig := <-app.Wait():
		log.Info("收到退出信号", "code", sig.ExitCode)
	case <-signalChan():
	}

	stopCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	return app.Stop(stopCtx)
}

func loadConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadFile(*configFile); err != nil {
			return nil, err
		}
	}
	if *muxImpl != "" {
		cfg.Mux.Implementation = config.MuxImplementation(*muxImpl)
	}
	return config.ValidateAndFix(cfg)
}

func signalChan() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return ch
}

// newDisconnectHandler 断连后关闭整个应用，演示程序不重连
func newDisconnectHandler(sd fx.Shutdowner) interfaces.DisconnectHandler {
	return interfaces.DisconnectHandlerFunc(func(peer types.PeerID, ch types.ChannelID, reason error) {
		log.Warn("连接方向已断开", "peer", peer, "channel", ch, "reason", reason)
		_ = sd.Shutdown(fx.ExitCode(1))
	})
}

func registerMetricsServer(lc fx.Lifecycle, reg *prometheus.Registry) {
	if *metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", *metricsAddr)
			if err != nil {
				return err
			}
			go func() { _ = srv.Serve(ln) }()
			log.Info("指标服务已启动", "addr", ln.Addr())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
