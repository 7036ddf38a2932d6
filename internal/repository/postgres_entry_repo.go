package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cleardental/internal/model"
	"github.com/hitoshi/cleardental/internal/rowscope"
)

var entryColumns = []string{"id", "title", "details", "user_id", "created_at"}

// PostgresEntryRepo はPostgreSQLを使用したエントリリポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

// Create はエントリを作成する。
func (r *PostgresEntryRepo) Create(ctx context.Context, caller Caller, entry *model.Entry) error {
	err := withCaller(ctx, r.db, caller, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO entries (id, title, details, user_id)
			 VALUES ($1, $2, $3, $4)
			 RETURNING created_at`,
			entry.ID, entry.Title, entry.Details, entry.UserID,
		).Scan(&entry.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

// List はQueryに一致するエントリを返す。
func (r *PostgresEntryRepo) List(ctx context.Context, caller Caller, q rowscope.Query) ([]*model.Entry, error) {
	query, args, err := buildSelect(entryColumns, q)
	if err != nil {
		return nil, fmt.Errorf("failed to build entry query: %w", err)
	}

	entries := []*model.Entry{}
	err = withCaller(ctx, r.db, caller, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e := &model.Entry{}
			if err := rows.Scan(&e.ID, &e.Title, &e.Details, &e.UserID, &e.CreatedAt); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)
