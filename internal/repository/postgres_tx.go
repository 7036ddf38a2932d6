package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/cleardental/internal/model"
	"github.com/hitoshi/cleardental/internal/rowscope"
	"github.com/lib/pq"
)

// pqInsufficientPrivilege は行レベルセキュリティ違反などで返るSQLSTATE。
const pqInsufficientPrivilege = "42501"

// withCaller はトランザクション内でRLS用のセッション変数を設定してfnを実行する。
// set_configの第3引数trueによりトランザクション終了時に破棄される。
func withCaller(ctx context.Context, db *sql.DB, caller Caller, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT set_config('app.current_user_id', $1, true), set_config('app.current_role', $2, true)`,
		caller.UserID, string(caller.Role),
	); err != nil {
		return fmt.Errorf("failed to set caller context: %w", err)
	}

	if err := fn(tx); err != nil {
		return translateError(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// translateError はpq.Errorの権限エラーをmodel.PermissionErrorに変換する。
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqInsufficientPrivilege {
		return &model.PermissionError{Message: pqErr.Message}
	}
	return err
}

// buildSelect はQueryをパラメータ化されたSELECT文に変換する。
// 識別子はpq.QuoteIdentifierでクォートし、値はすべてプレースホルダで渡す。
// columnsが空の場合は全カラムを取得する。
func buildSelect(columns []string, q rowscope.Query) (string, []any, error) {
	if q.Table == "" {
		return "", nil, fmt.Errorf("query has no table")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(columns) == 0 {
		sb.WriteString("*")
	} else {
		for i, c := range columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(pq.QuoteIdentifier(c))
		}
	}
	sb.WriteString(" FROM ")
	sb.WriteString(pq.QuoteIdentifier(q.Table))

	args := make([]any, 0, len(q.Filters))
	for i, f := range q.Filters {
		if f.Column == "" {
			return "", nil, fmt.Errorf("filter %d has no column", i)
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, "%s = $%d", pq.QuoteIdentifier(f.Column), len(args))
	}

	if q.Order != nil && q.Order.Column != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(pq.QuoteIdentifier(q.Order.Column))
		if q.Order.Ascending {
			sb.WriteString(" ASC")
		} else {
			sb.WriteString(" DESC")
		}
	}

	return sb.String(), args, nil
}
