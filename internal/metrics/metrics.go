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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordRegistrationSuccess()
	RecordRegistrationFailure(reason string)
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordDispatch()
	RecordSkippedNoAddress()
	RecordSweepDuration(d time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrationSuccess prometheus.Counter
	registrationFail    *prometheus.CounterVec
	loginSuccess        prometheus.Counter
	loginFail           prometheus.Counter
	dispatched          prometheus.Counter
	skippedNoAddress    prometheus.Counter
	sweepDuration       prometheus.Histogram
	httpStatus          *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrationSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "remindman_registration_success_total",
			Help: "ユーザー登録成功の合計数",
		}),
		registrationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remindman_registration_fail_total",
			Help: "ユーザー登録失敗の合計数",
		}, []string{"reason"}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "remindman_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "remindman_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "remindman_notifications_dispatched_total",
			Help: "配信された通知の合計数",
		}),
		skippedNoAddress: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "remindman_notifications_skipped_total",
			Help: "通知先未設定によりスキップされた通知の合計数",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "remindman_sweep_duration_seconds",
			Help:    "通知スイープの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remindman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.registrationSuccess,
		c.registrationFail,
		c.loginSuccess,
		c.loginFail,
		c.dispatched,
		c.skippedNoAddress,
		c.sweepDuration,
		c.httpStatus,
	)

	return c
}

// RecordRegistrationSuccess はユーザー登録成功を記録する。
func (c *Collector) RecordRegistrationSuccess() {
	c.registrationSuccess.Inc()
}

// RecordRegistrationFailure はユーザー登録失敗を失敗理由別に記録する。
func (c *Collector) RecordRegistrationFailure(reason string) {
	c.registrationFail.WithLabelValues(reason).Inc()
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordDispatch は通知配信を記録する。
func (c *Collector) RecordDispatch() {
	c.dispatched.Inc()
}

// RecordSkippedNoAddress は通知先未設定によるスキップを記録する。
func (c *Collector) RecordSkippedNoAddress() {
	c.skippedNoAddress.Inc()
}

// RecordSweepDuration は通知スイープの所要時間を記録する。
func (c *Collector) RecordSweepDuration(d time.Duration) {
	c.sweepDuration.Observe(d.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
