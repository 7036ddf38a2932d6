package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session token (外部IdPが発行するJWT)
	JWTSecret         string
	JWTIssuer         string
	JWTAudience       string
	JWTLeeway         time.Duration
	SessionCookieName string

	// Revocation store
	RedisURL string

	// Gate
	PublicPaths     []string
	AdminPaths      []string
	ProfileFallback bool
	ListFallback    bool

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitWrite   int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string
	StaticDir  string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// ENV_FILEが指定された場合はそのファイルを補助的に読み込む。実際の環境変数が優先される。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	env, err := newEnv(os.Getenv("ENV_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = env.get("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = env.get("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.JWTIssuer = env.getString("JWT_ISSUER", "")
	cfg.JWTAudience = env.getString("JWT_AUDIENCE", "authenticated")
	cfg.JWTLeeway = env.getDuration("JWT_LEEWAY", 30*time.Second)
	cfg.SessionCookieName = env.getString("SESSION_COOKIE_NAME", "sb-access-token")
	cfg.RedisURL = env.getString("REDIS_URL", "")
	cfg.PublicPaths = env.getList("PUBLIC_PATHS", []string{"/login", "/signup"})
	cfg.AdminPaths = env.getList("ADMIN_PATHS", []string{"/users"})
	cfg.ProfileFallback = env.getBool("PROFILE_FALLBACK", true)
	cfg.ListFallback = env.getBool("LIST_FALLBACK", true)
	cfg.RateLimitGeneral = env.getInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = env.getInt("RATE_LIMIT_WRITE", 30)
	cfg.LogLevel = env.getString("LOG_LEVEL", "info")
	cfg.ServerPort = env.getString("SERVER_PORT", "8080")
	cfg.BaseURL = env.getString("BASE_URL", "http://localhost:8080")
	cfg.StaticDir = env.getString("STATIC_DIR", "")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = env.getString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = env.getString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// env は実際の環境変数と.envファイルの値を合わせて参照する。
type env struct {
	file map[string]string
}

func newEnv(path string) (env, error) {
	if path == "" {
		return env{}, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return env{}, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return env{file: values}, nil
}

func (e env) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return e.file[key]
}

func (e env) getString(key, defaultVal string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return defaultVal
}

func (e env) getInt(key string, defaultVal int) int {
	v := e.get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func (e env) getBool(key string, defaultVal bool) bool {
	v := e.get(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func (e env) getDuration(key string, defaultVal time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getList はカンマ区切りのパス一覧を読み込む。空要素は無視する。
func (e env) getList(key string, defaultVal []string) []string {
	v := e.get(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
