// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/cleardental/internal/identity"
	"github.com/hitoshi/cleardental/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
	sessionContextKey = contextKey("session")
	// profileContextKey はリクエスト単位のプロフィールを格納するためのキー。
	profileContextKey = contextKey("profile")
)

// SessionVerifier はセッショントークンの検証に必要なインターフェース。
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*model.Session, error)
}

// tokenFromRequest はAuthorizationヘッダー（Bearer）またはCookieからトークンを取り出す。
// ヘッダーが優先される。
func tokenFromRequest(r *http.Request, cookieName string) (token string, bearer bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):]), true
		}
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, false
	}
	return "", false
}

// resolveSession はリクエストのトークンを検証する。
// トークンがない・不正・失効済みの場合は (nil, nil) を返し、
// 失効ストアの障害など判定不能な場合のみエラーを返す。
func resolveSession(r *http.Request, verifier SessionVerifier, cookieName string) (*model.Session, error) {
	token, bearer := tokenFromRequest(r, cookieName)
	if token == "" {
		return nil, nil
	}

	session, err := verifier.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, identity.ErrRevoked) {
			slog.Debug("session rejected",
				slog.String("path", r.URL.Path),
				slog.String("reason", err.Error()),
			)
			return nil, nil
		}
		return nil, err
	}
	session.Bearer = bearer
	return session, nil
}

// NewLoadSessionMiddleware はセッションがあればコンテキストに注入するミドルウェアを返す。
// 未認証でも拒否せず、後続（ページゲートなど）に判定を委ねる。
func NewLoadSessionMiddleware(verifier SessionVerifier, cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := resolveSession(r, verifier, cookieName)
			if err != nil {
				slog.Error("failed to verify session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if session != nil {
				noteUserID(r, session.UserID)
				r = r.WithContext(ContextWithSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewSessionMiddleware はセッションを必須とするミドルウェアを返す。
// 認証済みセッションをリクエストコンテキストに注入し、
// 未認証リクエストには401を返す。
func NewSessionMiddleware(verifier SessionVerifier, cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := resolveSession(r, verifier, cookieName)
			if err != nil {
				slog.Error("failed to verify session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if session == nil {
				WriteAPIError(w, model.NewUnauthenticatedError())
				return
			}
			noteUserID(r, session.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	return session, ok && session != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	session, ok := SessionFromContext(ctx)
	if !ok || session.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return session.UserID, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionCookieConfig はセッションCookieの属性。
type SessionCookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, cfg SessionCookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
