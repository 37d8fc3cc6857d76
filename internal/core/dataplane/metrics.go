package dataplane

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "dataplane"

// read_message_duration_seconds 的 result 标签
const (
	readResultHeartbeat = "heartbeat"
	readResultMessage   = "message"
	readResultError     = "error"
)

// disconnects_total 的 direction 标签
const (
	directionRead  = "read"
	directionWrite = "write"
)

// Metrics 数据平面指标
//
// 只负责记录，聚合与导出由注册表的持有者负责。
type Metrics struct {
	WriteTasks prometheus.Gauge
	ReadTasks  prometheus.Gauge

	HeartbeatsSent     *prometheus.CounterVec
	HeartbeatsReceived *prometheus.CounterVec
	WriteBytes         *prometheus.CounterVec
	ReadBytes          *prometheus.CounterVec
	Disconnects        *prometheus.CounterVec
	MessageReadErrors  *prometheus.CounterVec

	SendMessageDuration  *prometheus.HistogramVec
	ReadMessageDuration  *prometheus.HistogramVec
	EventHandlerDuration *prometheus.HistogramVec
}

// NewMetrics 创建指标并注册到 reg
//
// reg 为 nil 时不注册，适用于测试与未启用导出的场景。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WriteTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "write_tasks",
			Help:      "Number of running write tasks.",
		}),
		ReadTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "read_tasks",
			Help:      "Number of running read tasks.",
		}),
		HeartbeatsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "heartbeats_sent_total",
			Help:      "Heartbeat frames sent.",
		}, []string{"channel"}),
		HeartbeatsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "heartbeats_received_total",
			Help:      "Heartbeat frames received.",
		}, []string{"channel"}),
		WriteBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "write_bytes_total",
			Help:      "Bytes written including frame headers.",
		}, []string{"channel"}),
		ReadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "read_bytes_total",
			Help:      "Payload bytes delivered to the event handler.",
		}, []string{"channel"}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "disconnects_total",
			Help:      "Disconnects reported by read or write tasks.",
		}, []string{"channel", "direction"}),
		MessageReadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "message_read_errors_total",
			Help:      "Read failures by kind.",
		}, []string{"channel", "error"}),
		SendMessageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "send_message_duration_seconds",
			Help:      "Time to write and flush one aggregated buffer.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"channel"}),
		ReadMessageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "read_message_duration_seconds",
			Help:      "Time to read one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"channel", "result"}),
		EventHandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "event_handler_message_duration_seconds",
			Help:      "Time spent delivering one message to the event handler.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"channel"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.WriteTasks,
			m.ReadTasks,
			m.HeartbeatsSent,
			m.HeartbeatsReceived,
			m.WriteBytes,
			m.ReadBytes,
			m.Disconnects,
			m.MessageReadErrors,
			m.SendMessageDuration,
			m.ReadMessageDuration,
			m.EventHandlerDuration,
		)
	}
	return m
}
