package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	RelayRequestsTotal   *prometheus.CounterVec
	RelayRoundTrip       *prometheus.HistogramVec
	ConfirmationsTotal   *prometheus.CounterVec
	ConfirmationsPending prometheus.Gauge
	InsufficientFunds    prometheus.Counter
	LedgerRPCErrors      *prometheus.CounterVec
	OutboxPublished      prometheus.Counter
}

// Business 全局业务指标实例。未调用 InitBusinessMetrics 时为 nil，
// 各组件通过下面的 Observe* 辅助函数记录，nil 时直接忽略
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		RelayRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gem_relay_requests_total",
			Help: "Requests handled by the content-script relay",
		}, []string{"type", "outcome"}),
		RelayRoundTrip: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gem_relay_round_trip_seconds",
			Help:    "Time between a page request and the relayed response",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"type"}),
		ConfirmationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gem_confirmations_total",
			Help: "Confirmations that reached a terminal state",
		}, []string{"type", "state"}),
		ConfirmationsPending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gem_confirmations_open",
			Help: "Confirmations not closed yet",
		}),
		InsufficientFunds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gem_fee_gate_insufficient_total",
			Help: "Fee snapshots that blocked confirmation",
		}),
		LedgerRPCErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gem_ledger_rpc_errors_total",
			Help: "Failed ledger JSON-RPC calls",
		}, []string{"method"}),
		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gem_outbox_published_total",
			Help: "Telemetry outbox messages published to the broker",
		}),
	}
}

func ObserveRelay(msgType, outcome string, seconds float64) {
	if Business == nil {
		return
	}
	Business.RelayRequestsTotal.WithLabelValues(msgType, outcome).Inc()
	Business.RelayRoundTrip.WithLabelValues(msgType).Observe(seconds)
}

func ObserveConfirmation(msgType, state string) {
	if Business == nil {
		return
	}
	Business.ConfirmationsTotal.WithLabelValues(msgType, state).Inc()
}

func SetOpenConfirmations(n int) {
	if Business == nil {
		return
	}
	Business.ConfirmationsPending.Set(float64(n))
}

func ObserveInsufficientFunds() {
	if Business == nil {
		return
	}
	Business.InsufficientFunds.Inc()
}

func ObserveLedgerError(method string) {
	if Business == nil {
		return
	}
	Business.LedgerRPCErrors.WithLabelValues(method).Inc()
}

func ObserveOutboxPublished(n int) {
	if Business == nil {
		return
	}
	Business.OutboxPublished.Add(float64(n))
}
