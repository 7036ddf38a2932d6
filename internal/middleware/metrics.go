package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/cleardental/internal/metrics"
)

// NewMetricsMiddleware はステータスコードとルートごとの処理時間を記録するミドルウェアを返す。
// ルートはchiのパターン（例: /api/users）で集計し、未一致は "unmatched" とする。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			collector.RecordHTTPStatus(rec.statusCode)
			collector.RecordRequestLatency(route, time.Since(start))
		})
	}
}
