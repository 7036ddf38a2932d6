package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/cleardental/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// statusCode / statusMessage に加えて原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	StatusCode    int    `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	Code          string `json:"code"`
	Category      string `json:"category"`
	Action        string `json:"action"`
}

// StatusForAPIError はAPIErrorのコードをHTTPステータスに変換する。
func StatusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeBanned, model.ErrCodeAdminOnly, model.ErrCodeProfileMissing,
		model.ErrCodePermissionDenied, model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeInvalidRequest, model.ErrCodeNothingToUpdate,
		model.ErrCodeInvalidRole, model.ErrCodeUnknownResource:
		return http.StatusBadRequest
	case model.ErrCodeProfileNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		StatusCode:    statusCode,
		StatusMessage: apiErr.Message,
		Code:          apiErr.Code,
		Category:      apiErr.Category,
		Action:        apiErr.Action,
	})
}

// WriteAPIError はAPIErrorをコードに対応するステータスで書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForAPIError(apiErr), apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewUpstreamError(""))
}
