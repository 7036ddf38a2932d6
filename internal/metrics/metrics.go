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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordGateDecision(outcome string, status int)
	RecordProfileBootstrap(result string)
	RecordProfileUpdate(result string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(route string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gateDecisions    *prometheus.CounterVec
	profileBootstrap *prometheus.CounterVec
	profileUpdates   *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleardental_gate_decisions_total",
			Help: "アクセスゲートの判定結果別の件数",
		}, []string{"outcome", "status"}),
		profileBootstrap: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleardental_profile_bootstrap_total",
			Help: "プロフィール取得・自動作成の結果別の件数",
		}, []string{"result"}),
		profileUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleardental_profile_updates_total",
			Help: "管理者によるプロフィール更新の結果別の件数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleardental_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cleardental_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.gateDecisions,
		c.profileBootstrap,
		c.profileUpdates,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordGateDecision はゲートの判定結果を記録する。statusはDENYの場合のみ意味を持つ。
func (c *Collector) RecordGateDecision(outcome string, status int) {
	c.gateDecisions.WithLabelValues(outcome, strconv.Itoa(status)).Inc()
}

// RecordProfileBootstrap はプロフィール取得の結果（found, created, fallback, error）を記録する。
func (c *Collector) RecordProfileBootstrap(result string) {
	c.profileBootstrap.WithLabelValues(result).Inc()
}

// RecordProfileUpdate はプロフィール更新の結果を記録する。
func (c *Collector) RecordProfileUpdate(result string) {
	c.profileUpdates.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はルートパターンごとの処理時間を記録する。
func (c *Collector) RecordRequestLatency(route string, duration time.Duration) {
	c.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordGateDecision(string, int)             {}
func (Nop) RecordProfileBootstrap(string)              {}
func (Nop) RecordProfileUpdate(string)                 {}
func (Nop) RecordHTTPStatus(int)                       {}
func (Nop) RecordRequestLatency(string, time.Duration) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
