// Package rowscope はロールに応じた行スコープの解決を提供する。
//
// 管理者は全行、一般ユーザーは自分が所有する行のみを参照する。
// アプリケーション層での絞り込みは多層防御の一段であり、
// 最終的な強制はDBの行レベルセキュリティポリシーが担う。
package rowscope

// DefaultOwnerColumn は所有者を表すカラム名の既定値。
const DefaultOwnerColumn = "user_id"

// DefaultOrderColumn は一覧取得時の既定の並び順カラム。
const DefaultOrderColumn = "created_at"

// Filter は等価条件 column = value を表す。
type Filter struct {
	Column string
	Value  any
}

// Order は並び順を表す。
type Order struct {
	Column    string
	Ascending bool
}

// Query はテーブルに対するSELECTの論理表現。
// 値型であり、Eq/OrderByは新しいQueryを返す。
type Query struct {
	Table       string
	OwnerColumn string
	Filters     []Filter
	Order       *Order
}

// From はcreated_at降順をデフォルトとするQueryを生成する。
func From(table string) Query {
	return Query{
		Table:       table,
		OwnerColumn: DefaultOwnerColumn,
		Order:       &Order{Column: DefaultOrderColumn, Ascending: false},
	}
}

// Eq は等価条件を追加したQueryを返す。
func (q Query) Eq(column string, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Column: column, Value: value})
	return q
}

// OrderBy は並び順を差し替えたQueryを返す。
func (q Query) OrderBy(column string, ascending bool) Query {
	q.Order = &Order{Column: column, Ascending: ascending}
	return q
}

// HasFilter は指定カラム・値の等価条件を含むかどうかを返す。
func (q Query) HasFilter(column string, value any) bool {
	for _, f := range q.Filters {
		if f.Column == column && f.Value == value {
			return true
		}
	}
	return false
}

// Scope は呼び出し元のロールに応じてQueryを絞り込む。
// 管理者の場合は入力をそのまま返し、それ以外は所有者カラムの等価条件を追加する。
func Scope(q Query, callerID string, isAdmin bool) Query {
	if isAdmin {
		return q
	}
	owner := q.OwnerColumn
	if owner == "" {
		owner = DefaultOwnerColumn
	}
	return q.Eq(owner, callerID)
}
