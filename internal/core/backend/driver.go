package backend

import (
	"sync"
)

// Driver 多路复用会话的后台驱动
//
// 会话存活期间持续接受并拒绝多余的逻辑流（每个连接方向只使用一条）。
// 它的生命周期独立于读写任务，句柄保存在连接记录中。
type Driver struct {
	sess     muxSession
	done     chan struct{}
	rejected int

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closeErr  error
}

func startDriver(sess muxSession) *Driver {
	d := &Driver{
		sess: sess,
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Driver) run() {
	defer close(d.done)
	for {
		st, err := d.sess.Accept()
		if err != nil {
			d.mu.Lock()
			d.err = err
			d.mu.Unlock()
			log.Debug("多路复用驱动退出", "reason", err)
			return
		}
		d.mu.Lock()
		d.rejected++
		d.mu.Unlock()
		log.Debug("拒绝多余的逻辑流")
		_ = st.Close()
	}
}

// Done 在驱动退出（会话关闭）后关闭
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// Err 返回驱动退出的原因，运行中返回 nil
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Rejected 返回已拒绝的多余逻辑流数量
func (d *Driver) Rejected() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rejected
}

// Close 关闭会话并等待驱动退出，可重复调用
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		if err := parseError(d.sess.Close()); err != ErrConnClosed {
			d.closeErr = err
		}
		<-d.done
	})
	return d.closeErr
}
