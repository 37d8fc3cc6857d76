package backend

import (
	"bufio"
	"io"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-dataplane/pkg/types"
)

// ============================================================================
//                              读写能力
// ============================================================================

// Reader 流的读半部
type Reader interface {
	// ReadFull 读满 buf
	//
	// timeout > 0 时本次调用超过 timeout 即失败；不足 len(buf) 字节
	// 时返回错误而不是部分成功。
	ReadFull(buf []byte, timeout time.Duration) error
}

// Writer 流的写半部
type Writer interface {
	// WriteAll 写入 p 的全部字节并 flush
	WriteAll(p []byte) error
}

// deadlineReader 支持读超时的底层读端（net.Conn 与 yamux 流均满足）
type deadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// ============================================================================
//                              Stream
// ============================================================================

// Stream 一个连接方向上的读写半部
type Stream struct {
	kind   types.BackendKind
	reader Reader
	writer Writer
	driver *Driver
	closer io.Closer
}

// Kind 返回后端类型
func (s *Stream) Kind() types.BackendKind {
	return s.kind
}

// Reader 返回读半部
func (s *Stream) Reader() Reader {
	return s.reader
}

// Writer 返回写半部
func (s *Stream) Writer() Writer {
	return s.writer
}

// Driver 返回多路复用驱动，Raw 后端返回 nil
func (s *Stream) Driver() *Driver {
	return s.driver
}

// Close 关闭流以及（如果有）多路复用会话
func (s *Stream) Close() error {
	var err error
	if s.closer != nil {
		err = parseError(s.closer.Close())
		if err == ErrConnClosed {
			err = nil
		}
	}
	if s.driver != nil {
		err = multierr.Append(err, s.driver.Close())
	}
	return err
}

// ============================================================================
//                              通用实现
// ============================================================================

// streamReader 基于读截止时间实现 Reader
type streamReader struct {
	r deadlineReader
}

func (sr *streamReader) ReadFull(buf []byte, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := sr.r.SetReadDeadline(deadline); err != nil {
		return parseError(err)
	}
	_, err := io.ReadFull(sr.r, buf)
	return parseError(err)
}

// streamWriter 基于 bufio.Writer 实现 Writer
type streamWriter struct {
	bw *bufio.Writer
}

func newStreamWriter(w io.Writer) *streamWriter {
	return &streamWriter{bw: bufio.NewWriterSize(w, 64*1024)}
}

func (sw *streamWriter) WriteAll(p []byte) error {
	if _, err := sw.bw.Write(p); err != nil {
		return parseError(err)
	}
	return parseError(sw.bw.Flush())
}
