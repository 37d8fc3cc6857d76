package backend

import (
	"net"

	"github.com/dep2p/go-dataplane/pkg/types"
)

// NewRaw 在认证后的双工连接上创建 Raw 后端
//
// net.Conn 允许读写并发，读任务与写任务分别独占一半。
func NewRaw(conn net.Conn) *Stream {
	return &Stream{
		kind:   types.BackendRaw,
		reader: &streamReader{r: conn},
		writer: newStreamWriter(conn),
		closer: conn,
	}
}
