package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 业务指标
	ChargesCreatedTotal   *prometheus.CounterVec // 按支付方式统计创建的充值单
	ChargesCompletedTotal *prometheus.CounterVec
	RefundsTotal          prometheus.Counter
	NotifyRejectedTotal   prometheus.Counter // 验签失败的回调
	TimesConsumedTotal    prometheus.Counter // 消耗的生成次数
}

// NewCollector 创建指标收集器
func NewCollector() *Collector {
	return &Collector{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		ChargesCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charges_created_total",
				Help: "Total number of charge records created",
			},
			[]string{"method"},
		),
		ChargesCompletedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charges_completed_total",
				Help: "Total number of charges transitioned to completed",
			},
			[]string{"method"},
		),
		RefundsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "refunds_total",
				Help: "Total number of refunds processed",
			},
		),
		NotifyRejectedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "payment_notify_rejected_total",
				Help: "Total number of gateway callbacks rejected by signature check",
			},
		),
		TimesConsumedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "generation_times_consumed_total",
				Help: "Total number of generation credits consumed",
			},
		),
	}
}

// Default 全局收集器实例
var Default = NewCollector()
