package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（レスポンスのstatusMessage）
	Category string // カテゴリ: auth, validation, resource, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated  = "UNAUTHENTICATED"
	ErrCodeBanned           = "USER_BANNED"
	ErrCodeAdminOnly        = "ADMIN_ONLY"
	ErrCodeProfileMissing   = "PROFILE_MISSING"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNothingToUpdate  = "NOTHING_TO_UPDATE"
	ErrCodeInvalidRole      = "INVALID_ROLE"
	ErrCodeUnknownResource  = "UNKNOWN_RESOURCE"
	ErrCodeProfileNotFound  = "PROFILE_NOT_FOUND"
	ErrCodeUpstream         = "UPSTREAM_FAILURE"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeCSRF             = "CSRF_FAILED"
)

// ErrPermissionDenied は行レベルセキュリティなどDB側の権限エラーを表す。
// リポジトリ層がpq.Errorから変換して返す。
var ErrPermissionDenied = errors.New("permission denied")

// ErrProfileListUnavailable は管理者向けプロフィール一覧の取得失敗を表す。
// 呼び出し側は空の一覧に縮退するかどうかを選べる。
var ErrProfileListUnavailable = errors.New("profile list unavailable")

// PermissionError はDBが返した権限エラーのメッセージを保持する。
// errors.Is(err, ErrPermissionDenied) で判定できる。
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return "permission denied: " + e.Message
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Not authenticated",
		Category: "auth",
		Action:   "Sign in and retry.",
	}
}

// NewBannedError はBAN済みユーザーの操作拒否エラーを生成する。
func NewBannedError() *APIError {
	return &APIError{
		Code:     ErrCodeBanned,
		Message:  "User is banned",
		Category: "auth",
		Action:   "Contact an administrator.",
	}
}

// NewAdminOnlyError は管理者専用操作の拒否エラーを生成する。
func NewAdminOnlyError(message string) *APIError {
	if message == "" {
		message = "Admin only"
	}
	return &APIError{
		Code:     ErrCodeAdminOnly,
		Message:  message,
		Category: "auth",
		Action:   "Ask an administrator to perform this operation.",
	}
}

// NewProfileMissingError は操作者自身のプロフィールが存在しない場合のエラーを生成する。
func NewProfileMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileMissing,
		Message:  "Profile not found",
		Category: "auth",
		Action:   "Reload the application to create your profile.",
	}
}

// NewPermissionDeniedError はDBの権限エラーをそのままのメッセージで返す。
func NewPermissionDeniedError(message string) *APIError {
	if message == "" {
		message = "permission denied"
	}
	return &APIError{
		Code:     ErrCodePermissionDenied,
		Message:  message,
		Category: "auth",
		Action:   "You do not have access to this resource.",
	}
}

// NewBadRequestError は必須項目欠落などのリクエスト不正エラーを生成する。
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "Fix the request body and retry.",
	}
}

// NewNothingToUpdateError は更新項目が空の場合のエラーを生成する。
func NewNothingToUpdateError() *APIError {
	return &APIError{
		Code:     ErrCodeNothingToUpdate,
		Message:  "Nothing to update",
		Category: "validation",
		Action:   "Specify role or banned.",
	}
}

// NewInvalidRoleError は未知のロールが指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("Invalid role: %s", role),
		Category: "validation",
		Action:   "Role must be basic or admin.",
	}
}

// NewUnknownResourceError は許可リストにないリソース名が指定された場合のエラーを生成する。
func NewUnknownResourceError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownResource,
		Message:  fmt.Sprintf("Unknown table: %s", name),
		Category: "validation",
		Action:   "Use one of the published resource names.",
	}
}

// NewProfileNotFoundError は更新対象のプロフィールが存在しない場合のエラーを生成する。
func NewProfileNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("Profile not found: %s", userID),
		Category: "resource",
		Action:   "Check the user ID.",
	}
}

// NewUpstreamError は外部ストアの障害を表すエラーを生成する。
// 詳細はログにのみ出力し、messageには安全な文言を渡すこと。
func NewUpstreamError(message string) *APIError {
	if message == "" {
		message = "Internal server error"
	}
	return &APIError{
		Code:     ErrCodeUpstream,
		Message:  message,
		Category: "system",
		Action:   "Please retry later.",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewCSRFError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "Reload the page and retry.",
	}
}
