package main

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/fx"

	"github.com/dep2p/go-dataplane/internal/core/dataplane"
	"github.com/dep2p/go-dataplane/internal/core/sendqueue"
	"github.com/dep2p/go-dataplane/pkg/interfaces"
	"github.com/dep2p/go-dataplane/pkg/types"
)

// demo 单个连接方向的演示流程
type demo struct {
	dp         *dataplane.DataPlane
	queue      *sendqueue.Queue
	kind       types.BackendKind
	shutdowner fx.Shutdowner

	ln       net.Listener
	received atomic.Int64
}

func (d *demo) start(_ context.Context) error {
	if *listenAddr != "" {
		ln, err := net.Listen("tcp", *listenAddr)
		if err != nil {
			return err
		}
		d.ln = ln
		fmt.Printf("监听 %s（后端 %s）\n", ln.Addr(), d.kind)
		go d.acceptOne()
		return nil
	}

	go d.dial()
	return nil
}

func (d *demo) stop(_ context.Context) error {
	if d.ln != nil {
		return d.ln.Close()
	}
	return nil
}

// acceptOne 接受一个连接并回显
func (d *demo) acceptOne() {
	conn, err := d.ln.Accept()
	if err != nil {
		log.Debug("停止接受连接", "err", err)
		return
	}
	echo := interfaces.EventHandlerFunc(func(_ context.Context, msg types.Message) error {
		return d.queue.Enqueue(msg.Payload)
	})
	d.connect(conn, types.RoleResponder, echo)
}

// dial 拨号并发送消息，收齐回显后退出
func (d *demo) dial() {
	conn, err := net.Dial("tcp", *dialAddr)
	if err != nil {
		log.Error("拨号失败", "addr", *dialAddr, "err", err)
		_ = d.shutdowner.Shutdown(fx.ExitCode(1))
		return
	}

	want := int64(*count)
	collect := interfaces.EventHandlerFunc(func(_ context.Context, msg types.Message) error {
		fmt.Printf("收到回显: %s\n", msg.Payload)
		if d.received.Add(1) == want {
			_ = d.shutdowner.Shutdown()
		}
		return nil
	})
	if !d.connect(conn, types.RoleInitiator, collect) {
		return
	}

	for i := 0; i < *count; i++ {
		if err := d.queue.Enqueue([]byte(fmt.Sprintf("hello #%d", i))); err != nil {
			log.Error("入队失败", "err", err)
			return
		}
	}
}

func (d *demo) connect(conn net.Conn, role types.ConnectionRole, h interfaces.EventHandler) bool {
	c, err := d.dp.Connect(context.Background(), dataplane.ConnectParams{
		PeerID:    types.PeerID(*peerName),
		ChannelID: types.ChannelID(*channel),
		Role:      role,
		Conn:      conn,
		Queue:     d.queue,
		Handler:   h,
		Backend:   d.kind,
	})
	if err != nil {
		log.Error("建立连接方向失败", "err", err)
		_ = d.shutdowner.Shutdown(fx.ExitCode(1))
		return false
	}
	fmt.Printf("已连接 %s（id=%s, role=%s）\n", c.PeerAddr(), c.ID(), c.Role())
	return true
}
