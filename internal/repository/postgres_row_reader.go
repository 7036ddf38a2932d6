package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cleardental/internal/rowscope"
)

// PostgresRowReader は許可リストで解決済みのテーブルを汎用的に読み出す。
type PostgresRowReader struct {
	db *sql.DB
}

// NewPostgresRowReader はPostgresRowReaderを生成する。
func NewPostgresRowReader(db *sql.DB) *PostgresRowReader {
	return &PostgresRowReader{db: db}
}

// SelectRows はQueryに一致する行を返す。
// テキスト系カラムは[]byteで返るためstringに変換する。
func (r *PostgresRowReader) SelectRows(ctx context.Context, caller Caller, q rowscope.Query) ([]map[string]any, error) {
	query, args, err := buildSelect(nil, q)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	result := []map[string]any{}
	err = withCaller(ctx, r.db, caller, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return err
		}

		for rows.Next() {
			values := make([]any, len(columns))
			ptrs := make([]any, len(columns))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}

			row := make(map[string]any, len(columns))
			for i, col := range columns {
				if b, ok := values[i].([]byte); ok {
					row[col] = string(b)
				} else {
					row[col] = values[i]
				}
			}
			result = append(result, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select rows from %s: %w", q.Table, err)
	}
	return result, nil
}

// compile-time interface check
var _ RowReader = (*PostgresRowReader)(nil)
