package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/cleardental/internal/config"
	"github.com/hitoshi/cleardental/internal/database"
	"github.com/hitoshi/cleardental/internal/entry"
	"github.com/hitoshi/cleardental/internal/gate"
	"github.com/hitoshi/cleardental/internal/handler"
	"github.com/hitoshi/cleardental/internal/identity"
	"github.com/hitoshi/cleardental/internal/logger"
	"github.com/hitoshi/cleardental/internal/metrics"
	"github.com/hitoshi/cleardental/internal/middleware"
	"github.com/hitoshi/cleardental/internal/repository"
	"github.com/hitoshi/cleardental/internal/security"
	"github.com/hitoshi/cleardental/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck と token は軽量サブコマンドのため、フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandToken:
		return runToken(w, args[1:])
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newRevocationStore はREDIS_URLが設定されていればRedis、なければプロセス内の失効リストを返す。
// プロセス内の失効リストは複数インスタンス間で共有されない。
func newRevocationStore(ctx context.Context, cfg *config.Config) (identity.RevocationStore, func(), error) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL is not set, using in-memory session revocation")
		return identity.NewMemoryRevocationStore(), func() {}, nil
	}

	client, err := identity.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("redis connection established")
	return identity.NewRedisRevocationStore(client), func() { client.Close() }, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(ctx, db); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	if bypass, err := database.BypassesRowSecurity(ctx, db); err != nil {
		slog.Warn("could not inspect database role", slog.String("error", err.Error()))
	} else if bypass {
		slog.Warn("database role bypasses row level security, entries policies are not enforced")
	}

	// 2. セッション検証
	revocations, closeRevocations, err := newRevocationStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer closeRevocations()

	verifier := identity.NewVerifier(identity.VerifierConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   cfg.JWTLeeway,
	}, revocations)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. リポジトリとドメインサービスの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	entryRepo := repository.NewPostgresEntryRepo(db)
	rowReader := repository.NewPostgresRowReader(db)

	userService := user.NewService(profileRepo, collector)
	entryService := entry.NewService(entryRepo, rowReader, nil, security.NewContentSanitizer())

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitWrite),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Config: handler.RouterConfig{
			BaseURL:           cfg.BaseURL,
			CORSAllowedOrigin: cfg.CORSAllowedOrigin,
			SessionCookie: middleware.SessionCookieConfig{
				Name:   cfg.SessionCookieName,
				Domain: cfg.CookieDomain,
				Secure: cfg.CookieSecure,
			},
			CSRF: middleware.CSRFConfig{
				CookieSecure: cfg.CookieSecure,
				CookieDomain: cfg.CookieDomain,
			},
			ProfileFallback: cfg.ProfileFallback,
			ListFallback:    cfg.ListFallback,
			StaticDir:       cfg.StaticDir,
		},
		Verifier:       verifier,
		SignOuter:      verifier,
		Gate:           gate.New(cfg.PublicPaths, cfg.AdminPaths),
		RateLimiter:    rateLimiter,
		Logger:         slog.Default(),
		HealthChecker:  db,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		UserService:    userService,
		EntryService:   entryService,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// runToken は開発用にIdP互換のセッショントークンを発行して出力する。
// 使い方: token <user-id> [email]
// JWT_SECRET / JWT_ISSUER / JWT_AUDIENCE を参照し、有効期限は1時間。
func runToken(w io.Writer, args []string) error {
	if len(args) == 0 || args[0] == "" {
		return errors.New("usage: token <user-id> [email]")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	audience := os.Getenv("JWT_AUDIENCE")
	if audience == "" {
		audience = "authenticated"
	}

	var email string
	if len(args) > 1 {
		email = args[1]
	}

	token, err := identity.SignToken(identity.VerifierConfig{
		Secret:   []byte(secret),
		Issuer:   os.Getenv("JWT_ISSUER"),
		Audience: audience,
	}, args[0], email, time.Hour)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	_, err = fmt.Fprintln(w, token)
	return err
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.Redacted()
}
