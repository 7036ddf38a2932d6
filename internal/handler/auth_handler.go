// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/cleardental/internal/gate"
	"github.com/hitoshi/cleardental/internal/middleware"
	"github.com/hitoshi/cleardental/internal/model"
)

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string
	Cookie  middleware.SessionCookieConfig
}

// AuthHandler はセッションの確認とサインアウトのHTTPハンドラー。
// セッションの発行は外部IdPが行う。
type AuthHandler struct {
	signOuter middleware.SignOuter
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(signOuter middleware.SignOuter, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		signOuter: signOuter,
		config:    config,
	}
}

// Logout はセッションを失効させ、セッションCookieを削除してログイン画面に遷移させる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session, ok := middleware.SessionFromContext(r.Context()); ok {
		if err := h.signOuter.SignOut(r.Context(), session); err != nil {
			slog.Error("failed to logout",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
			// 失効に失敗してもCookieはクリアする
		}
	}

	middleware.ClearSessionCookie(w, h.config.Cookie)

	http.Redirect(w, r, h.config.BaseURL+gate.LoginPath, http.StatusSeeOther)
}

// Me は現在のセッションのユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	resp := map[string]any{
		"user_id": session.UserID,
		"email":   nil,
	}
	if session.Email != "" {
		resp["email"] = session.Email
	}
	writeJSON(w, http.StatusOK, resp)
}
