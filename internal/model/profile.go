// Package model はドメインモデルを定義する。
package model

import "time"

// Role はプロフィールの権限ロール。
type Role string

const (
	RoleBasic Role = "basic"
	RoleAdmin Role = "admin"
)

// Valid はロールが既知の値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleBasic || r == RoleAdmin
}

// Session は外部IdPが発行した認証済みセッションを表す。
// このシステムは読み取りのみ行い、発行・破棄はIdP側の責務。
type Session struct {
	ID        string // 失効リストのキー（session_idクレーム、なければトークンのハッシュ）
	UserID    string
	Email     string
	ExpiresAt time.Time
	// Bearer はAuthorizationヘッダー経由で認証されたかどうか。
	// Cookie経由の場合のみCSRF検証の対象になる。
	Bearer bool
}

// Profile はユーザーごとのロール・BAN状態を保持する。
// user_idごとに1行のみ存在する（UNIQUE制約）。
type Profile struct {
	ID        *string // フォールバックプロフィールではnil
	UserID    string
	Email     *string
	Role      Role
	Banned    bool
	CreatedAt time.Time
}

// IsAdmin はadminロールかどうかを返す。
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// NewDefaultProfile は初回アクセス時に作成するプロフィールの雛形を返す。
func NewDefaultProfile(session *Session) *Profile {
	p := &Profile{
		UserID: session.UserID,
		Role:   RoleBasic,
		Banned: false,
	}
	if session.Email != "" {
		email := session.Email
		p.Email = &email
	}
	return p
}

// NewFallbackProfile は永続化されない合成プロフィールを返す。
// プロフィールストアの障害時にUIを止めないためのもので、IDはnilになる。
func NewFallbackProfile(session *Session, now time.Time) *Profile {
	p := NewDefaultProfile(session)
	p.CreatedAt = now
	return p
}

// ProfilePatch は管理者によるプロフィール部分更新の内容。
// nilのフィールドは変更しない。
type ProfilePatch struct {
	Role   *Role
	Banned *bool
}

// Empty は更新対象のフィールドが1つもないかどうかを返す。
func (p ProfilePatch) Empty() bool {
	return p.Role == nil && p.Banned == nil
}

// LookupStatus はプロフィール検索の結果区分。
type LookupStatus int

const (
	LookupFound LookupStatus = iota
	LookupNotFound
	LookupUpstreamError
)

// String はメトリクスやログ用のラベルを返す。
func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	case LookupUpstreamError:
		return "upstream_error"
	default:
		return "unknown"
	}
}

// ProfileLookup はプロフィール検索の結果。
// 未検出と上流エラーを区別し、フォールバック方針は呼び出し側が決める。
type ProfileLookup struct {
	Status  LookupStatus
	Profile *Profile
	Err     error
}

// Found は検索成功の結果を返す。
func Found(p *Profile) ProfileLookup {
	return ProfileLookup{Status: LookupFound, Profile: p}
}

// NotFound は未検出の結果を返す。
func NotFound() ProfileLookup {
	return ProfileLookup{Status: LookupNotFound}
}

// UpstreamFailure は上流エラーの結果を返す。
func UpstreamFailure(err error) ProfileLookup {
	return ProfileLookup{Status: LookupUpstreamError, Err: err}
}
