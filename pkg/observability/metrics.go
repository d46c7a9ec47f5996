package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 中继指标
// 使用独立的 Registry，避免与全局默认 Registry 冲突（便于测试）
type Metrics struct {
	registry   *prometheus.Registry
	presses    *prometheus.CounterVec
	upstream   *prometheus.CounterVec
	pressCount prometheus.Gauge
}

// NewMetrics 创建并注册指标
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		presses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_presses_total",
			Help: "Button presses handled, by outcome.",
		}, []string{"outcome"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_upstream_requests_total",
			Help: "Requests sent to the messaging platform, by operation and status code.",
		}, []string{"operation", "code"}),
		pressCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_press_count",
			Help: "Current value of the press counter.",
		}),
	}

	m.registry.MustRegister(m.presses, m.upstream, m.pressCount)
	return m
}

// ObservePress 记录按键结果
func (m *Metrics) ObservePress(outcome string, count int) {
	if m == nil {
		return
	}
	m.presses.WithLabelValues(outcome).Inc()
	m.pressCount.Set(float64(count))
}

// ObserveUpstream 记录平台调用，status 为 0 表示传输失败
func (m *Metrics) ObserveUpstream(operation string, status int) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.upstream.WithLabelValues(operation, code).Inc()
}

// Handler 返回指标暴露的 HTTP Handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
