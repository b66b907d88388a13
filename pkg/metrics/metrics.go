package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		JobDuration, JobTotal, JobRetryTotal,
		DecisionDuration, DecisionFailTotal,
		PublishFailTotal, EventDeliveredTotal, EventDroppedTotal, EventDedupedTotal,
		LiveConnections, WorkerBusy,
	)
}

// JobDuration 审核任务执行耗时（秒）
var JobDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "modplat_job_duration_seconds",
		Help:    "审核任务执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// JobTotal 审核任务总数（按终态）
var JobTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "modplat_job_total",
		Help: "审核任务总数（按终态）",
	},
	[]string{"status"}, // succeeded | failed | superseded
)

// JobRetryTotal 审核任务重试次数
var JobRetryTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "modplat_job_retry_total",
		Help: "审核任务重试次数",
	},
)

// DecisionDuration Decision 客户端调用耗时（秒）
var DecisionDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "modplat_decision_duration_seconds",
		Help:    "Decision 客户端调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider"},
)

// DecisionFailTotal Decision 调用失败数（按错误类型）
var DecisionFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "modplat_decision_fail_total",
		Help: "Decision 调用失败数（按错误类型）",
	},
	[]string{"kind"}, // transient | malformed
)

// PublishFailTotal 通知发布失败数（重试耗尽后丢弃）
var PublishFailTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "modplat_publish_fail_total",
		Help: "通知发布失败数（重试耗尽后丢弃）",
	},
)

// EventDeliveredTotal 推送成功的连接次数
var EventDeliveredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "modplat_event_delivered_total",
		Help: "推送成功的连接次数",
	},
)

// EventDroppedTotal 无在线连接而丢弃的事件数
var EventDroppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "modplat_event_dropped_total",
		Help: "无在线连接而丢弃的事件数",
	},
)

// EventDedupedTotal Dispatcher 去重命中的事件数（Broker 重投递）
var EventDedupedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "modplat_event_deduped_total",
		Help: "Dispatcher 去重命中的事件数",
	},
)

// LiveConnections 当前在线推送连接数
var LiveConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "modplat_live_connections",
		Help: "当前在线推送连接数",
	},
)

// WorkerBusy 当前正在执行的审核任务数（每 Worker）
var WorkerBusy = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "modplat_worker_busy",
		Help: "当前正在执行的审核任务数",
	},
	[]string{"worker_id"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	mfs, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
