package handler

import (
	"time"

	"github.com/hitoshi/cleardental/internal/model"
)

// profileResponse はプロフィールのJSON表現。
// フォールバックプロフィールではidがnullになる。
type profileResponse struct {
	ID        *string    `json:"id"`
	UserID    string     `json:"user_id"`
	Email     *string    `json:"email"`
	Role      model.Role `json:"role"`
	Banned    bool       `json:"banned"`
	CreatedAt time.Time  `json:"created_at"`
}

// entryResponse はエントリのJSON表現。
type entryResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Details   string    `json:"details"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func toProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Email:     p.Email,
		Role:      p.Role,
		Banned:    p.Banned,
		CreatedAt: p.CreatedAt,
	}
}

func toProfileResponses(profiles []*model.Profile) []profileResponse {
	results := make([]profileResponse, len(profiles))
	for i, p := range profiles {
		results[i] = toProfileResponse(p)
	}
	return results
}

func toEntryResponse(e *model.Entry) entryResponse {
	return entryResponse{
		ID:        e.ID,
		Title:     e.Title,
		Details:   e.Details,
		UserID:    e.UserID,
		CreatedAt: e.CreatedAt,
	}
}

func toEntryResponses(entries []*model.Entry) []entryResponse {
	results := make([]entryResponse, len(entries))
	for i, e := range entries {
		results[i] = toEntryResponse(e)
	}
	return results
}
