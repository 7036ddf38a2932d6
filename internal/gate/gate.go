// Package gate はページ遷移のアクセス判定を提供する。
//
// 判定は純粋関数で、セッション・パス・プロフィールから
// ALLOW / REDIRECT / DENY のいずれかを返す。
// サインアウトなどの副作用は呼び出し側（middleware）が Decision.SignOut を見て実行する。
package gate

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/cleardental/internal/model"
)

// Outcome は判定結果の種別。
type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
	OutcomeDeny     Outcome = "deny"
)

const (
	LoginPath       = "/login"
	HomePath        = "/"
	BannedLoginPath = "/login?error=banned"
)

// DefaultPublicPaths は未ログインでのみ表示するページ。
var DefaultPublicPaths = []string{"/login", "/signup"}

// DefaultAdminPaths は管理者のみが表示できるページ。
var DefaultAdminPaths = []string{"/users"}

// Decision はアクセス判定の結果。
type Decision struct {
	Outcome Outcome
	Target  string // REDIRECTの遷移先
	Status  int    // DENYのHTTPステータス
	SignOut bool   // 遷移前にセッションを無効化する必要があるか
}

// Allow は許可の判定を返す。
func Allow() Decision { return Decision{Outcome: OutcomeAllow} }

// Redirect は指定パスへのリダイレクト判定を返す。
func Redirect(target string) Decision {
	return Decision{Outcome: OutcomeRedirect, Target: target}
}

// Deny は指定ステータスでの拒否判定を返す。
func Deny(status int) Decision {
	return Decision{Outcome: OutcomeDeny, Status: status}
}

// ProfileLoader はプロフィールを遅延取得する関数。
// 判定に必要な場合のみ呼ばれる。
type ProfileLoader func() model.ProfileLookup

// Gate は公開パスと管理者パスで構成されたアクセス判定器。
type Gate struct {
	public map[string]struct{}
	admin  []string
}

// New はGateを生成する。publicPathsが空の場合はDefaultPublicPathsを使う。
func New(publicPaths, adminPaths []string) *Gate {
	if len(publicPaths) == 0 {
		publicPaths = DefaultPublicPaths
	}
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}
	return &Gate{public: public, admin: adminPaths}
}

// IsPublic はパスが公開ページかどうかを返す。
func (g *Gate) IsPublic(path string) bool {
	_, ok := g.public[path]
	return ok
}

// IsAdminPath はパスが管理者ページ（またはその配下）かどうかを返す。
func (g *Gate) IsAdminPath(path string) bool {
	for _, p := range g.admin {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Decide はページ遷移のアクセス判定を行う。先に一致した規則が優先される。
//
//  1. 公開ページかつ未ログイン → ALLOW
//  2. 未ログインかつ非公開ページ → REDIRECT /login
//  3. ログイン済みかつ公開ページ → REDIRECT /
//  4. ログイン済みかつ非公開ページでBAN済み → サインアウトして REDIRECT /login?error=banned
//  5. それ以外 → ALLOW
//
// プロフィール取得が上流エラーの場合は許可せず DENY(500) を返す。
// プロフィールが未作成の場合はBANされていないものとして扱う。
func (g *Gate) Decide(session *model.Session, path string, load ProfileLoader) Decision {
	public := g.IsPublic(path)

	if session == nil {
		if public {
			return Allow()
		}
		return Redirect(LoginPath)
	}

	if public {
		return Redirect(HomePath)
	}

	lookup := load()
	switch lookup.Status {
	case model.LookupUpstreamError:
		slog.Error("access gate profile lookup failed",
			slog.String("user_id", session.UserID),
			slog.String("path", path),
			slog.Any("error", lookup.Err),
		)
		return Deny(http.StatusInternalServerError)
	case model.LookupFound:
		if lookup.Profile != nil && lookup.Profile.Banned {
			d := Redirect(BannedLoginPath)
			d.SignOut = true
			return d
		}
	}

	return Allow()
}

// DecideAdmin は管理者ページの判定を行う。
// 未ログインは /login、管理者以外（プロフィール未作成を含む）は / にリダイレクトする。
func (g *Gate) DecideAdmin(session *model.Session, load ProfileLoader) Decision {
	if session == nil {
		return Redirect(LoginPath)
	}

	lookup := load()
	switch lookup.Status {
	case model.LookupUpstreamError:
		slog.Error("admin gate profile lookup failed",
			slog.String("user_id", session.UserID),
			slog.Any("error", lookup.Err),
		)
		return Deny(http.StatusInternalServerError)
	case model.LookupFound:
		if lookup.Profile.IsAdmin() {
			return Allow()
		}
	}

	return Redirect(HomePath)
}

// Evaluate は通常判定と、管理者パスの場合は管理者判定を続けて行う。
func (g *Gate) Evaluate(session *model.Session, path string, load ProfileLoader) Decision {
	d := g.Decide(session, path, load)
	if d.Outcome != OutcomeAllow || !g.IsAdminPath(path) {
		return d
	}
	return g.DecideAdmin(session, load)
}
