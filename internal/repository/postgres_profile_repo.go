package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cleardental/internal/model"
)

const profileColumns = `id, user_id, email, role, banned, created_at`

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*model.Profile, error) {
	var (
		id    string
		email sql.NullString
		role  string
	)
	p := &model.Profile{}
	if err := row.Scan(&id, &p.UserID, &email, &role, &p.Banned, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.ID = &id
	p.Role = model.Role(role)
	if email.Valid {
		e := email.String
		p.Email = &e
	}
	return p, nil
}

// FindByUserID はユーザーIDでプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by user ID: %w", err)
	}
	return p, nil
}

// InsertIfAbsent はプロフィールが存在しない場合のみ作成する。
// 競合した場合は既存行を読み直して返す。
func (r *PostgresProfileRepo) InsertIfAbsent(ctx context.Context, profile *model.Profile) (*model.Profile, bool, error) {
	var email sql.NullString
	if profile.Email != nil {
		email = sql.NullString{String: *profile.Email, Valid: true}
	}

	stored, err := scanProfile(r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (user_id, email, role, banned)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO NOTHING
		 RETURNING `+profileColumns,
		profile.UserID, email, string(profile.Role), profile.Banned,
	))
	if err == nil {
		return stored, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to insert profile: %w", err)
	}

	// ON CONFLICT DO NOTHING の場合は RETURNING が0行になる
	existing, err := r.FindByUserID(ctx, profile.UserID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("profile for %s vanished after insert conflict", profile.UserID)
	}
	return existing, false, nil
}

// ListAll は全プロフィールをcreated_at降順で返す。
func (r *PostgresProfileRepo) ListAll(ctx context.Context) ([]*model.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*model.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

// Update は指定ユーザーのプロフィールを部分更新する。
// patchでnilのフィールドは現在の値を保持する。対象が存在しない場合はnilを返す。
func (r *PostgresProfileRepo) Update(ctx context.Context, userID string, patch model.ProfilePatch) (*model.Profile, error) {
	var (
		role   sql.NullString
		banned sql.NullBool
	)
	if patch.Role != nil {
		role = sql.NullString{String: string(*patch.Role), Valid: true}
	}
	if patch.Banned != nil {
		banned = sql.NullBool{Bool: *patch.Banned, Valid: true}
	}

	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`UPDATE profiles
		 SET role = COALESCE($2, role), banned = COALESCE($3, banned)
		 WHERE user_id = $1
		 RETURNING `+profileColumns,
		userID, role, banned,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", translateError(err))
	}
	return p, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
