// Package metrics 定义 Prometheus 可观测性指标。
// 守门器运行期间更新的主要指标：
//   - gate_evaluations_total{state}      闸门评估次数（按就绪状态）
//   - quality_flags_total{severity}      质量标志产生次数（按严重级别）
//   - decisions_total{outcome}           决策条数（accepted/suppressed）
//   - journal_enqueued_total             日志入队成功次数
//   - journal_rejected_total             日志入队被拒次数（写入器未激活）
//   - journal_written_total              成功落盘的条目数
//   - journal_write_errors_total         序列化/落盘失败次数
//   - journal_queue_depth                当前待写队列长度
//
// 所有指标在 init() 中注册，由 cmd 的 /metrics HTTP 端点暴露。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GateEvaluations 闸门评估次数（按就绪状态）
	GateEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_evaluations_total",
			Help: "Tape freshness gate evaluations by resulting state",
		},
		[]string{"state"},
	)

	// QualityFlags 质量标志产生次数（按严重级别）
	QualityFlags = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quality_flags_total",
			Help: "Data quality flags emitted by severity",
		},
		[]string{"severity"},
	)

	// Decisions 决策条数（按结果）
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decisions_total",
			Help: "Decisions recorded by outcome",
		},
		[]string{"outcome"},
	)

	// JournalEnqueued 日志入队成功次数
	JournalEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_enqueued_total",
			Help: "Journal entries accepted by Enqueue",
		},
	)

	// JournalRejected 日志入队被拒次数
	JournalRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_rejected_total",
			Help: "Journal entries rejected because the writer is not accepting",
		},
	)

	// JournalWritten 成功落盘的条目数
	JournalWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_written_total",
			Help: "Journal entries durably written",
		},
	)

	// JournalWriteErrors 序列化/落盘失败次数
	JournalWriteErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_write_errors_total",
			Help: "Journal entries that failed to serialize or flush",
		},
	)

	// JournalQueueDepth 当前待写队列长度
	JournalQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "journal_queue_depth",
			Help: "Entries currently waiting for the journal consumer",
		},
	)
)

func init() {
	prometheus.MustRegister(
		GateEvaluations,
		QualityFlags,
		Decisions,
		JournalEnqueued,
		JournalRejected,
		JournalWritten,
		JournalWriteErrors,
		JournalQueueDepth,
	)
}

// Handler 返回 /metrics 的 HTTP handler（Prometheus 文本格式）
func Handler() http.Handler {
	return promhttp.Handler()
}
