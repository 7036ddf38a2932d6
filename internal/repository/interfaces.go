// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/cleardental/internal/model"
	"github.com/hitoshi/cleardental/internal/rowscope"
)

// Caller はDBの行レベルセキュリティに渡す呼び出し元の情報。
type Caller struct {
	UserID string
	Role   model.Role
}

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID はユーザーIDでプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// InsertIfAbsent はプロフィールが存在しない場合のみ作成し、保存済みの行を返す。
	// 同時に呼ばれた場合もuser_idのUNIQUE制約により1行に収束する。
	// createdは今回の呼び出しで作成したかどうか。
	InsertIfAbsent(ctx context.Context, profile *model.Profile) (stored *model.Profile, created bool, err error)

	// ListAll は全プロフィールをcreated_at降順で返す。
	ListAll(ctx context.Context) ([]*model.Profile, error)

	// Update は指定ユーザーのプロフィールを部分更新する。
	// 対象が存在しない場合はnilを返す。
	Update(ctx context.Context, userID string, patch model.ProfilePatch) (*model.Profile, error)
}

// EntryRepository はエントリの永続化インターフェース。
// すべての操作は呼び出し元を行レベルセキュリティのコンテキストに設定して実行する。
type EntryRepository interface {
	// Create はエントリを作成する。CreatedAtはDBの値で埋められる。
	Create(ctx context.Context, caller Caller, entry *model.Entry) error

	// List はスコープ済みQueryに一致するエントリを返す。
	List(ctx context.Context, caller Caller, q rowscope.Query) ([]*model.Entry, error)
}

// RowReader は許可リストで解決済みのテーブルを汎用的に読み出す。
type RowReader interface {
	// SelectRows はQueryに一致する行をカラム名をキーとするmapで返す。
	SelectRows(ctx context.Context, caller Caller, q rowscope.Query) ([]map[string]any, error)
}
