package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leverager"

var (
	// Registry 本服务独立的 Prometheus 注册表
	Registry = prometheus.NewRegistry()

	BuildAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txbuilder",
			Name:      "build_attempts_total",
			Help:      "Compile-and-serialize attempts, labelled by outcome (fit / oversize / error).",
		},
		[]string{"outcome"},
	)

	BuildResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txbuilder",
			Name:      "build_results_total",
			Help:      "Final build-and-fit results (success / oversize / error).",
		},
		[]string{"result"},
	)

	TransactionSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "txbuilder",
			Name:      "transaction_size_bytes",
			Help:      "Serialized transaction size per attempt.",
			Buckets:   prometheus.LinearBuckets(600, 100, 10), // 600 .. 1500
		},
	)

	InlineAccounts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "txbuilder",
			Name:      "inline_accounts",
			Help:      "Compressible accounts left inline after compilation.",
			Buckets:   prometheus.LinearBuckets(0, 4, 10),
		},
	)

	TableOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup_table",
			Name:      "operations_total",
			Help:      "User lookup-table operations (create / extend), labelled by status.",
		},
		[]string{"op", "status"},
	)

	TableAddressesAdded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup_table",
			Name:      "addresses_added_total",
			Help:      "Addresses appended to user lookup tables.",
		},
	)

	RPCRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "RPC calls by method and status.",
		},
		[]string{"method", "status"},
	)

	PositionOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "operations_total",
			Help:      "Position operations by kind and status.",
		},
		[]string{"kind", "status"},
	)

	PositionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "operation_duration_seconds",
			Help:      "Duration of position operations.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
		},
		[]string{"kind"},
	)
)

func init() {
	Registry.MustRegister(
		BuildAttempts,
		BuildResults,
		TransactionSize,
		InlineAccounts,
		TableOperations,
		TableAddressesAdded,
		RPCRequests,
		PositionOperations,
		PositionDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler 暴露已注册的指标
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRPC 记录一次 RPC 调用
func ObserveRPC(method string, err error) {
	RPCRequests.WithLabelValues(method, statusLabel(err)).Inc()
}

// ObserveTableOp 记录一次建表 / 扩表
func ObserveTableOp(op string, added int, err error) {
	TableOperations.WithLabelValues(op, statusLabel(err)).Inc()
	if err == nil && added > 0 {
		TableAddressesAdded.Add(float64(added))
	}
}

// ObservePosition 记录一次仓位操作
func ObservePosition(kind string, seconds float64, err error) {
	PositionOperations.WithLabelValues(kind, statusLabel(err)).Inc()
	PositionDuration.WithLabelValues(kind).Observe(seconds)
}
