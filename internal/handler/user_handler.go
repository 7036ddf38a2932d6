package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/cleardental/internal/metrics"
	"github.com/hitoshi/cleardental/internal/middleware"
	"github.com/hitoshi/cleardental/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	middleware.ProfileLookuper

	// GetOrCreateSelf はセッションのユーザーのプロフィールを返し、なければ作成する。
	GetOrCreateSelf(ctx context.Context, session *model.Session) (*model.Profile, error)
	// ListAll は管理者に全プロフィールを返す。
	ListAll(ctx context.Context, actor *model.Session, actorProfile model.ProfileLookup) ([]*model.Profile, error)
	// Update は管理者が対象ユーザーのロール・BAN状態を部分更新する。
	Update(ctx context.Context, actor *model.Session, actorProfile model.ProfileLookup, targetUserID string, patch model.ProfilePatch) (*model.Profile, error)
}

// UserHandlerConfig はユーザーハンドラーの設定。
type UserHandlerConfig struct {
	// ProfileFallback がtrueの場合、GET /api/users?self=true でプロフィールの取得・作成に
	// 失敗しても永続化されない既定プロフィールを返す。
	ProfileFallback bool
	// ListFallback がtrueの場合、GET /api/users で一覧の取得に失敗しても空配列を返す。
	// 操作者の認可エラーは縮退しない。
	ListFallback bool
}

// UserHandler はプロフィール関連のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	config  UserHandlerConfig
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, config UserHandlerConfig, collector metrics.MetricsCollector) *UserHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &UserHandler{
		service: service,
		config:  config,
		metrics: collector,
		now:     time.Now,
	}
}

// updateUserRequest はPATCH /api/usersのリクエストボディ。
type updateUserRequest struct {
	UserID string      `json:"userId"`
	Role   *model.Role `json:"role"`
	Banned *bool       `json:"banned"`
}

// GetUsers はクエリに応じて自分のプロフィールまたは全プロフィールを返す。
// GET /api/users?self=true
// GET /api/users
func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("self") == "true" {
		h.getSelf(w, r)
		return
	}

	session, _ := middleware.SessionFromContext(r.Context())
	profiles, err := h.service.ListAll(r.Context(), session, middleware.LookupProfile(r.Context()))
	if err != nil {
		if !h.config.ListFallback || !errors.Is(err, model.ErrProfileListUnavailable) {
			handleServiceError(w, r, err)
			return
		}
		slog.Error("profile list failed, returning empty list",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		profiles = nil
	}

	writeJSON(w, http.StatusOK, toProfileResponses(profiles))
}

func (h *UserHandler) getSelf(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	p, err := h.service.GetOrCreateSelf(r.Context(), session)
	if err != nil {
		if !h.config.ProfileFallback {
			handleServiceError(w, r, err)
			return
		}
		slog.Error("profile bootstrap failed, returning fallback profile",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		h.metrics.RecordProfileBootstrap("fallback")
		p = model.NewFallbackProfile(session, h.now())
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// UpdateUser は管理者が対象ユーザーのロール・BAN状態を更新する。
// PATCH /api/users
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), session, middleware.LookupProfile(r.Context()),
		req.UserID, model.ProfilePatch{Role: req.Role, Banned: req.Banned})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"profile": toProfileResponse(updated),
	})
}
