package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/cleardental/internal/middleware"
	"github.com/hitoshi/cleardental/internal/model"
)

// GateHandler はクライアント側のルートミドルウェア向けにゲート判定を返すハンドラー。
type GateHandler struct {
	enforcer *middleware.GateEnforcer
}

// NewGateHandler はGateHandlerを生成する。
func NewGateHandler(enforcer *middleware.GateEnforcer) *GateHandler {
	return &GateHandler{enforcer: enforcer}
}

type gateResponse struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
	Status int    `json:"status,omitempty"`
}

// Evaluate は指定パスへの遷移可否を判定する。BAN済みの場合はサインアウトも行う。
// GET /api/gate?path=/users
func (h *GateHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	// クエリやフラグメント付きのURL（/login?error=banned）でもパス部分で判定する
	target, err := url.Parse(r.URL.Query().Get("path"))
	if err != nil || target.Scheme != "" || target.Host != "" || !strings.HasPrefix(target.Path, "/") {
		middleware.WriteAPIError(w, model.NewBadRequestError("path must be an absolute path"))
		return
	}

	d := h.enforcer.Enforce(w, r, target.Path)
	writeJSON(w, http.StatusOK, gateResponse{
		Action: string(d.Outcome),
		Target: d.Target,
		Status: d.Status,
	})
}
