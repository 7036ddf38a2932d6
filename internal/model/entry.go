package model

import "time"

// Entry は所有者付きの保護リソース。
// UserIDは作成時に作成者のIDが設定され、非管理者の経路では変更されない。
type Entry struct {
	ID        string
	Title     string
	Details   string
	UserID    string
	CreatedAt time.Time
}
