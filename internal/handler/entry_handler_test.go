package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/cleardental/internal/entry"
	"github.com/hitoshi/cleardental/internal/middleware"
	"github.com/hitoshi/cleardental/internal/model"
)

// --- モック定義 ---

type mockEntryService struct {
	listFn   func(ctx context.Context, session *model.Session, lookup model.ProfileLookup) ([]*model.Entry, error)
	createFn func(ctx context.Context, session *model.Session, lookup model.ProfileLookup, in entry.CreateInput) (*model.Entry, error)
	fetchFn  func(ctx context.Context, session *model.Session, lookup model.ProfileLookup, name string) ([]map[string]any, error)
}

func (m *mockEntryService) List(ctx context.Context, session *model.Session, lookup model.ProfileLookup) ([]*model.Entry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, session, lookup)
	}
	return nil, nil
}

func (m *mockEntryService) Create(ctx context.Context, session *model.Session, lookup model.ProfileLookup, in entry.CreateInput) (*model.Entry, error) {
	if m.createFn != nil {
		return m.createFn(ctx, session, lookup, in)
	}
	return &model.Entry{Title: in.Title, UserID: session.UserID}, nil
}

func (m *mockEntryService) FetchTable(ctx context.Context, session *model.Session, lookup model.ProfileLookup, name string) ([]map[string]any, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, session, lookup, name)
	}
	return nil, nil
}

// withSession はセッションとプロフィールをリクエストコンテキストに注入する。
func withSession(r *http.Request, userID string, lookup model.ProfileLookup) *http.Request {
	ctx := middleware.ContextWithSession(r.Context(), &model.Session{ID: "sess-" + userID, UserID: userID})
	ctx = middleware.ContextWithProfile(ctx, lookup)
	return r.WithContext(ctx)
}

// --- テスト ---

func TestEntryHandler_ListEntries_EmptyIsArray(t *testing.T) {
	h := NewEntryHandler(&mockEntryService{})

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/entries", nil), "user-1", model.NotFound())
	rec := httptest.NewRecorder()
	h.ListEntries(rec, req)

	assertStatus(t, rec, http.StatusOK)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestEntryHandler_ListEntries_PassesRequestProfile(t *testing.T) {
	var gotLookup model.ProfileLookup
	svc := &mockEntryService{
		listFn: func(ctx context.Context, session *model.Session, lookup model.ProfileLookup) ([]*model.Entry, error) {
			gotLookup = lookup
			return []*model.Entry{{ID: "e-1", UserID: session.UserID}}, nil
		},
	}
	h := NewEntryHandler(svc)

	admin := model.Found(&model.Profile{UserID: "admin-1", Role: model.RoleAdmin})
	req := withSession(httptest.NewRequest(http.MethodGet, "/api/entries", nil), "admin-1", admin)
	rec := httptest.NewRecorder()
	h.ListEntries(rec, req)

	assertStatus(t, rec, http.StatusOK)
	if gotLookup.Status != model.LookupFound || !gotLookup.Profile.IsAdmin() {
		t.Errorf("lookup = %+v, want admin profile from context", gotLookup)
	}
}

func TestEntryHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "RLSによる拒否はDBのメッセージで403",
			err:         &model.PermissionError{Message: "permission denied for table entries"},
			wantStatus:  http.StatusForbidden,
			wantMessage: "permission denied for table entries",
		},
		{
			name:        "ラップされたRLS拒否",
			err:         errors.Join(errors.New("query"), &model.PermissionError{Message: "new row violates row-level security policy"}),
			wantStatus:  http.StatusForbidden,
			wantMessage: "new row violates row-level security policy",
		},
		{
			name:        "BAN済み",
			err:         model.NewBannedError(),
			wantStatus:  http.StatusForbidden,
			wantMessage: "User is banned",
		},
		{
			name:        "その他のエラーは詳細を隠して500",
			err:         errors.New("pq: connection reset by peer"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockEntryService{
				createFn: func(ctx context.Context, session *model.Session, lookup model.ProfileLookup, in entry.CreateInput) (*model.Entry, error) {
					return nil, tt.err
				},
			}
			h := NewEntryHandler(svc)

			req := withSession(httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader(`{"title":"t"}`)), "user-1", model.NotFound())
			rec := httptest.NewRecorder()
			h.CreateEntry(rec, req)

			assertStatus(t, rec, tt.wantStatus)
			body := decodeBody[middleware.ErrorResponseBody](t, rec)
			if body.StatusMessage != tt.wantMessage {
				t.Errorf("statusMessage = %q, want %q", body.StatusMessage, tt.wantMessage)
			}
		})
	}
}

func TestEntryHandler_CreateEntry_PassesInput(t *testing.T) {
	var got entry.CreateInput
	svc := &mockEntryService{
		createFn: func(ctx context.Context, session *model.Session, lookup model.ProfileLookup, in entry.CreateInput) (*model.Entry, error) {
			got = in
			return &model.Entry{ID: "e-1", Title: in.Title, Details: in.Details, UserID: session.UserID}, nil
		},
	}
	h := NewEntryHandler(svc)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/entries",
		strings.NewReader(`{"title":"Checkup","details":"6 months","user_id":"other"}`)), "user-1", model.NotFound())
	rec := httptest.NewRecorder()
	h.CreateEntry(rec, req)

	assertStatus(t, rec, http.StatusOK)
	if got.Title != "Checkup" || got.Details != "6 months" {
		t.Errorf("input = %+v, want title and details from body", got)
	}
}

func TestEntryHandler_FetchData(t *testing.T) {
	var gotName string
	svc := &mockEntryService{
		fetchFn: func(ctx context.Context, session *model.Session, lookup model.ProfileLookup, name string) ([]map[string]any, error) {
			gotName = name
			return nil, nil
		},
	}
	h := NewEntryHandler(svc)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/fetchData", strings.NewReader(`{"table":"entries"}`)), "user-1", model.NotFound())
	rec := httptest.NewRecorder()
	h.FetchData(rec, req)

	assertStatus(t, rec, http.StatusOK)
	if gotName != "entries" {
		t.Errorf("table = %q, want entries", gotName)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestEntryHandler_NoSession_Returns401(t *testing.T) {
	h := NewEntryHandler(&mockEntryService{})

	for name, fn := range map[string]http.HandlerFunc{"CreateEntry": h.CreateEntry, "FetchData": h.FetchData} {
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader(`{}`)))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s status = %d, want %d", name, rec.Code, http.StatusUnauthorized)
		}
	}
}
