package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cleardental/internal/gate"
	"github.com/hitoshi/cleardental/internal/metrics"
	"github.com/hitoshi/cleardental/internal/model"
)

// SignOuter はセッションを無効化するインターフェース。
type SignOuter interface {
	SignOut(ctx context.Context, session *model.Session) error
}

// GateEnforcer はゲート判定と、判定に伴うサインアウトを行う。
// ページゲートミドルウェアとゲート評価APIで共有する。
type GateEnforcer struct {
	gate      *gate.Gate
	signOuter SignOuter
	cookie    SessionCookieConfig
	metrics   metrics.MetricsCollector
}

// NewGateEnforcer はGateEnforcerを生成する。collectorがnilの場合は記録しない。
func NewGateEnforcer(g *gate.Gate, signOuter SignOuter, cookie SessionCookieConfig, collector metrics.MetricsCollector) *GateEnforcer {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &GateEnforcer{gate: g, signOuter: signOuter, cookie: cookie, metrics: collector}
}

// Enforce はリクエストのセッションとパスで判定を行い、必要ならサインアウトする。
// サインアウトの失敗はログに残し、判定結果（ログイン画面への遷移）は変えない。
func (e *GateEnforcer) Enforce(w http.ResponseWriter, r *http.Request, path string) gate.Decision {
	session, _ := SessionFromContext(r.Context())
	d := e.gate.Evaluate(session, path, ProfileLoader(r.Context()))
	e.metrics.RecordGateDecision(string(d.Outcome), d.Status)

	if d.SignOut && session != nil {
		if err := e.signOuter.SignOut(r.Context(), session); err != nil {
			slog.Error("failed to sign out banned user",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
		}
		ClearSessionCookie(w, e.cookie)
		slog.Info("banned user signed out",
			slog.String("user_id", session.UserID),
			slog.String("path", path),
		)
	}
	return d
}

// NewPageGateMiddleware はページ遷移をゲート判定に従って制御するミドルウェアを返す。
// NewLoadSessionMiddleware と NewProfileContextMiddleware の後に配置すること。
func NewPageGateMiddleware(e *GateEnforcer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := e.Enforce(w, r, r.URL.Path)
			switch d.Outcome {
			case gate.OutcomeRedirect:
				http.Redirect(w, r, d.Target, http.StatusFound)
			case gate.OutcomeDeny:
				http.Error(w, http.StatusText(d.Status), d.Status)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
