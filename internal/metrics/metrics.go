// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ショップAPIクライアントと更新ワーカーから利用する。
type MetricsCollector interface {
	RecordRequest(endpoint string, statusCode int, duration time.Duration, err error)
	RecordLoginFailure(reason string)
	RecordRefresh(success bool, at time.Time)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	vendorRequests *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	loginFailures  *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	lastRefresh    prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		vendorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rohlikhub_vendor_requests_total",
			Help: "ショップAPI呼び出しの合計数",
		}, []string{"endpoint", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rohlikhub_vendor_http_status_total",
			Help: "ショップAPIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rohlikhub_vendor_request_latency_seconds",
			Help:    "ショップAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		loginFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rohlikhub_login_failures_total",
			Help: "ログイン失敗の合計数",
		}, []string{"reason"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rohlikhub_refresh_total",
			Help: "アカウント情報の更新回数",
		}, []string{"result"}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rohlikhub_last_refresh_timestamp_seconds",
			Help: "最後に更新に成功した時刻（UNIX秒）",
		}),
	}

	reg.MustRegister(
		c.vendorRequests,
		c.httpStatus,
		c.requestLatency,
		c.loginFailures,
		c.refreshes,
		c.lastRefresh,
	)

	return c
}

// RecordRequest はショップAPI呼び出しの結果とレイテンシを記録する。
// 通信失敗時のstatusCodeは0。
func (c *Collector) RecordRequest(endpoint string, statusCode int, duration time.Duration, err error) {
	result := "ok"
	switch {
	case err != nil:
		result = "transport_error"
	case statusCode < 200 || statusCode >= 300:
		result = "http_error"
	}
	c.vendorRequests.WithLabelValues(endpoint, result).Inc()
	if statusCode > 0 {
		c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	}
	c.requestLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFailures.WithLabelValues(reason).Inc()
}

// RecordRefresh はアカウント情報の更新結果を記録する。
func (c *Collector) RecordRefresh(success bool, at time.Time) {
	if !success {
		c.refreshes.WithLabelValues("failure").Inc()
		return
	}
	c.refreshes.WithLabelValues("success").Inc()
	c.lastRefresh.Set(float64(at.Unix()))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
