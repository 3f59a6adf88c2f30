package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"exgate/logger"
)

var (
	// 订阅指标
	subscriptionOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exgate_subscription_opened_total",
			Help: "Total number of subscriptions established",
		},
		[]string{"channel"},
	)

	subscriptionClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exgate_subscription_closed_total",
			Help: "Total number of subscriptions disposed",
		},
		[]string{"channel"},
	)

	subscriptionActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exgate_subscription_active",
			Help: "Number of currently live subscriptions",
		},
		[]string{"channel"},
	)

	// 推送指标
	pushEventTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exgate_push_event_total",
			Help: "Total number of push events delivered to callbacks",
		},
		[]string{"channel"},
	)

	callbackFaultTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exgate_callback_fault_total",
			Help: "Total number of panics recovered inside user callbacks",
		},
		[]string{"channel"},
	)

	// REST 指标
	apiCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exgate_api_call_total",
			Help: "Total number of REST API calls",
		},
		[]string{"exchange", "endpoint", "status"},
	)

	apiCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exgate_api_call_duration_seconds",
			Help:    "REST API call duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"exchange", "endpoint"},
	)

	// WebSocket 指标
	websocketConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exgate_websocket_connected",
			Help: "WebSocket connection status (0=disconnected, 1=connected)",
		},
		[]string{"exchange", "stream_type"},
	)

	// 系统指标
	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exgate_goroutine_count",
			Help: "Number of goroutines",
		},
	)

	memoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exgate_memory_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)

	gcPauseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exgate_gc_pause_duration_seconds",
			Help:    "GC pause duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	processCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exgate_process_cpu_percent",
			Help: "Process CPU usage percentage",
		},
	)

	processMemoryMB = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exgate_process_memory_mb",
			Help: "Process resident memory in MB",
		},
	)
)

// RecordSubscriptionOpened 记录订阅建立
func RecordSubscriptionOpened(channel string) {
	subscriptionOpenedTotal.WithLabelValues(channel).Inc()
	subscriptionActive.WithLabelValues(channel).Inc()
}

// RecordSubscriptionClosed 记录订阅释放
func RecordSubscriptionClosed(channel string) {
	subscriptionClosedTotal.WithLabelValues(channel).Inc()
	subscriptionActive.WithLabelValues(channel).Dec()
}

// RecordPushEvent 记录推送事件
func RecordPushEvent(channel string) {
	pushEventTotal.WithLabelValues(channel).Inc()
}

// RecordCallbackFault 记录回调 panic
func RecordCallbackFault(channel string) {
	callbackFaultTotal.WithLabelValues(channel).Inc()
}

// RecordAPICall 记录 REST API 调用
func RecordAPICall(exchange, endpoint, status string, duration time.Duration) {
	apiCallTotal.WithLabelValues(exchange, endpoint, status).Inc()
	apiCallDuration.WithLabelValues(exchange, endpoint).Observe(duration.Seconds())
}

// SetWebSocketStatus 设置 WebSocket 连接状态
func SetWebSocketStatus(exchange, streamType string, connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	websocketConnected.WithLabelValues(exchange, streamType).Set(value)
}

// StartServer 启动 Prometheus 指标 HTTP 服务
func StartServer(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("🌐 Prometheus 指标服务已启动: http://%s/metrics", listen)
		if err := http.ListenAndServe(listen, mux); err != nil {
			logger.Error("❌ Prometheus 指标服务异常退出: %v", err)
		}
	}()
}
