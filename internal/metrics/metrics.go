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
// サービス層およびミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignupSuccess()
	RecordSignupRejected(reason string)
	RecordGeocodeLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signupSuccess  prometheus.Counter
	signupRejected *prometheus.CounterVec
	geocodeLatency prometheus.Histogram
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signupSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "funapp_signup_success_total",
			Help: "サインアップ成功の合計数",
		}),
		signupRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "funapp_signup_rejected_total",
			Help: "拒否理由別のサインアップ拒否数",
		}, []string{"reason"}),
		geocodeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "funapp_geocode_latency_seconds",
			Help:    "リバースジオコーディングのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "funapp_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.signupSuccess,
		c.signupRejected,
		c.geocodeLatency,
		c.httpStatus,
	)

	return c
}

// RecordSignupSuccess はサインアップ成功を記録する。
func (c *Collector) RecordSignupSuccess() {
	c.signupSuccess.Inc()
}

// RecordSignupRejected は拒否理由付きでサインアップ拒否を記録する。
// reasonにはemail_exists等のスネークケースの理由を渡す。
func (c *Collector) RecordSignupRejected(reason string) {
	c.signupRejected.WithLabelValues(reason).Inc()
}

// RecordGeocodeLatency はリバースジオコーディングのレイテンシを記録する。
func (c *Collector) RecordGeocodeLatency(duration time.Duration) {
	c.geocodeLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
