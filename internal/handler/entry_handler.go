package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/cleardental/internal/entry"
	"github.com/hitoshi/cleardental/internal/middleware"
	"github.com/hitoshi/cleardental/internal/model"
)

// EntryServiceInterface はエントリハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	List(ctx context.Context, session *model.Session, lookup model.ProfileLookup) ([]*model.Entry, error)
	Create(ctx context.Context, session *model.Session, lookup model.ProfileLookup, in entry.CreateInput) (*model.Entry, error)
	FetchTable(ctx context.Context, session *model.Session, lookup model.ProfileLookup, name string) ([]map[string]any, error)
}

// EntryHandler はエントリと汎用取得のHTTPハンドラー。
type EntryHandler struct {
	service EntryServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface) *EntryHandler {
	return &EntryHandler{service: service}
}

type createEntryRequest struct {
	Title   string `json:"title"`
	Details string `json:"details"`
}

type fetchDataRequest struct {
	Table string `json:"table"`
}

// ListEntries は呼び出し元が参照できるエントリをcreated_at降順で返す。
// GET /api/entries
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())

	entries, err := h.service.List(r.Context(), session, middleware.LookupProfile(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryResponses(entries))
}

// CreateEntry は呼び出し元を所有者としてエントリを作成する。
// ボディにuser_idが含まれていても無視される。
// POST /api/entries
func (h *EntryHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	var req createEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), session, middleware.LookupProfile(r.Context()),
		entry.CreateInput{Title: req.Title, Details: req.Details})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"entry": toEntryResponse(created),
	})
}

// FetchData は許可リストに登録されたリソースをロールに応じて絞り込んで返す。
// POST /api/fetchData
func (h *EntryHandler) FetchData(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	var req fetchDataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	rows, err := h.service.FetchTable(r.Context(), session, middleware.LookupProfile(r.Context()), req.Table)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	writeJSON(w, http.StatusOK, rows)
}
