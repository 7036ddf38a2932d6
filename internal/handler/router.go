package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/cleardental/internal/gate"
	"github.com/hitoshi/cleardental/internal/metrics"
	"github.com/hitoshi/cleardental/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通を確認する依存先。*sql.DB が満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterConfig はルーターの設定。
type RouterConfig struct {
	BaseURL           string
	CORSAllowedOrigin string
	SessionCookie     middleware.SessionCookieConfig
	CSRF              middleware.CSRFConfig
	ProfileFallback   bool
	ListFallback      bool
	// StaticDir はページ応答として配信するSPAのビルド成果物のディレクトリ。
	StaticDir string
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Config RouterConfig

	// ミドルウェア依存
	Verifier    middleware.SessionVerifier
	SignOuter   middleware.SignOuter
	Gate        *gate.Gate
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger

	// 観測
	HealthChecker  HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// ドメイン
	UserService  UserServiceInterface
	EntryService EntryServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェアの実行順序:
//
//	RequestID → Recovery → Logging → Metrics → CORS → SecurityHeaders
//
// /api 配下（/api/gate を除く）はさらに以下を通る:
//
//	Session → ProfileContext → RateLimit(General) → CSRF
//
// ページ遷移と /api/gate はセッションを任意とし、ゲート判定で制御する。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewCORSMiddleware(cfg.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	enforcer := middleware.NewGateEnforcer(deps.Gate, deps.SignOuter, cfg.SessionCookie, collector)

	authHandler := NewAuthHandler(deps.SignOuter, AuthHandlerConfig{BaseURL: cfg.BaseURL, Cookie: cfg.SessionCookie})
	gateHandler := NewGateHandler(enforcer)
	userHandler := NewUserHandler(deps.UserService, UserHandlerConfig{
		ProfileFallback: cfg.ProfileFallback,
		ListFallback:    cfg.ListFallback,
	}, collector)
	entryHandler := NewEntryHandler(deps.EntryService)

	loadSession := middleware.NewLoadSessionMiddleware(deps.Verifier, cfg.SessionCookie.Name)
	requireSession := middleware.NewSessionMiddleware(deps.Verifier, cfg.SessionCookie.Name)
	profileContext := middleware.NewProfileContextMiddleware(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(loadSession)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Route("/api", func(r chi.Router) {
		// ゲート判定は未ログインでも応答する
		r.Group(func(r chi.Router) {
			r.Use(loadSession)
			r.Use(profileContext)
			r.Get("/gate", gateHandler.Evaluate)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Use(profileContext)
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(middleware.NewCSRFMiddleware(cfg.CSRF))

			r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(cfg.CSRF))

			r.Get("/users", userHandler.GetUsers)
			r.Patch("/users", userHandler.UpdateUser)

			r.Get("/entries", entryHandler.ListEntries)
			r.With(deps.RateLimiter.WriteMiddleware()).Post("/entries", entryHandler.CreateEntry)

			r.Post("/fetchData", entryHandler.FetchData)
		})
	})

	// --- ページ遷移 ---
	r.Group(func(r chi.Router) {
		r.Use(loadSession)
		r.Use(profileContext)
		r.Use(middleware.NewPageGateMiddleware(enforcer))
		r.Get("/*", pageHandler(cfg.StaticDir))
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// pageHandler はSPAの静的ファイルを配信する。
// 存在しないパスにはクライアント側ルーティングのためindex.htmlを返す。
func pageHandler(staticDir string) http.HandlerFunc {
	if staticDir == "" {
		return http.NotFound
	}
	files := http.FileServer(http.Dir(staticDir))
	index := filepath.Join(staticDir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		clean := filepath.Clean("/" + strings.TrimPrefix(r.URL.Path, "/"))
		info, err := os.Stat(filepath.Join(staticDir, filepath.FromSlash(clean)))
		if err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, index)
	}
}
