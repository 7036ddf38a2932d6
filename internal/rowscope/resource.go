package rowscope

import "github.com/hitoshi/cleardental/internal/model"

// Resource は汎用取得エンドポイントに公開する論理リソースの定義。
// クライアントから受け取ったテーブル名はこの許可リストで物理テーブルに解決する。
type Resource struct {
	Name         string
	Table        string
	OwnerColumn  string
	RequiredRole model.Role
}

// Query はリソースに対する既定のQueryを返す。
func (r Resource) Query() Query {
	q := From(r.Table)
	if r.OwnerColumn != "" {
		q.OwnerColumn = r.OwnerColumn
	}
	return q
}

// Permits はプロフィールがこのリソースを参照できるかどうかを返す。
func (r Resource) Permits(p *model.Profile) bool {
	if r.RequiredRole == model.RoleAdmin {
		return p.IsAdmin()
	}
	return p != nil
}

// Registry は論理名から Resource への許可リスト。
type Registry struct {
	resources map[string]Resource
}

// NewRegistry は与えられたリソースで許可リストを構築する。
func NewRegistry(resources ...Resource) *Registry {
	m := make(map[string]Resource, len(resources))
	for _, r := range resources {
		m[r.Name] = r
	}
	return &Registry{resources: m}
}

// DefaultRegistry はentries（全ロール）とprofiles（管理者のみ）を公開する。
func DefaultRegistry() *Registry {
	return NewRegistry(
		Resource{Name: "entries", Table: "entries", OwnerColumn: "user_id", RequiredRole: model.RoleBasic},
		Resource{Name: "profiles", Table: "profiles", OwnerColumn: "user_id", RequiredRole: model.RoleAdmin},
	)
}

// Lookup は論理名に対応する Resource を返す。
func (r *Registry) Lookup(name string) (Resource, bool) {
	res, ok := r.resources[name]
	return res, ok
}
